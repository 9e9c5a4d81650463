package testutil

import (
	"fmt"
	"sync"

	"github.com/abhibansal60/led-catalog/internal/catalog"
)

// ScriptedPicker answers directory prompts from pre-queued replies and
// records every call, letting tests drive the permission flow without a
// user present. An unqueued call fails with an error so a test that
// prompts unexpectedly fails loudly instead of silently canceling.
type ScriptedPicker struct {
	mu       sync.Mutex
	picks    []catalog.PickResult
	confirms []bool
	Calls    []string
}

func NewScriptedPicker() *ScriptedPicker {
	return &ScriptedPicker{}
}

// QueuePick makes the next directory prompt return path.
func (p *ScriptedPicker) QueuePick(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.picks = append(p.picks, catalog.PickResult{Path: path})
}

// QueuePickCancel makes the user cancel the next directory prompt.
func (p *ScriptedPicker) QueuePickCancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.picks = append(p.picks, catalog.PickResult{Canceled: true})
}

// QueueConfirm makes the user re-grant access at the next confirmation.
func (p *ScriptedPicker) QueueConfirm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms = append(p.confirms, true)
}

// QueueConfirmDecline makes the user decline the next confirmation.
func (p *ScriptedPicker) QueueConfirmDecline() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirms = append(p.confirms, false)
}

func (p *ScriptedPicker) PickDirectory(purpose catalog.PickPurpose) (catalog.PickResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, "pick:"+string(purpose))
	if len(p.picks) == 0 {
		return catalog.PickResult{}, fmt.Errorf("no scripted reply for pick %s", purpose)
	}
	r := p.picks[0]
	p.picks = p.picks[1:]
	return r, nil
}

func (p *ScriptedPicker) ConfirmAccess(path string) (catalog.PickResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, "confirm:"+path)
	if len(p.confirms) == 0 {
		return catalog.PickResult{}, fmt.Errorf("no scripted reply for confirm %s", path)
	}
	granted := p.confirms[0]
	p.confirms = p.confirms[1:]
	if !granted {
		return catalog.PickResult{Canceled: true}, nil
	}
	return catalog.PickResult{Path: path}, nil
}

// Compile-time check
var _ catalog.Picker = (*ScriptedPicker)(nil)
