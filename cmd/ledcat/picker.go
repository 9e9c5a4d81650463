package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/abhibansal60/led-catalog/internal/catalog"
)

// terminalPicker satisfies catalog.Picker on a terminal. Directory
// flags preseed answers per purpose, so scripted invocations never
// block on a prompt; anything not preseeded is asked on stdin. An
// empty answer cancels.
type terminalPicker struct {
	preset map[catalog.PickPurpose]string
	in     *bufio.Reader
}

func newTerminalPicker() *terminalPicker {
	return &terminalPicker{
		preset: make(map[catalog.PickPurpose]string),
		in:     bufio.NewReader(os.Stdin),
	}
}

// Preset fixes the answer for one purpose. Empty paths are ignored so
// unset flags can be passed straight through.
func (p *terminalPicker) Preset(purpose catalog.PickPurpose, path string) {
	if path != "" {
		p.preset[purpose] = path
	}
}

func (p *terminalPicker) PickDirectory(purpose catalog.PickPurpose) (catalog.PickResult, error) {
	if path, ok := p.preset[purpose]; ok {
		return catalog.PickResult{Path: path}, nil
	}

	fmt.Printf("Directory for %s (empty cancels): ", purposeLabel(purpose))
	line, err := p.in.ReadString('\n')
	if err != nil {
		return catalog.PickResult{}, fmt.Errorf("reading directory prompt: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return catalog.PickResult{Canceled: true}, nil
	}
	return catalog.PickResult{Path: line}, nil
}

func (p *terminalPicker) ConfirmAccess(path string) (catalog.PickResult, error) {
	fmt.Printf("Keep using program folder %s? [Y/n]: ", path)
	line, err := p.in.ReadString('\n')
	if err != nil {
		return catalog.PickResult{}, fmt.Errorf("reading confirmation prompt: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return catalog.PickResult{Path: path}, nil
	}
	return catalog.PickResult{Canceled: true}, nil
}

func purposeLabel(purpose catalog.PickPurpose) string {
	switch purpose {
	case catalog.PickBind:
		return "the program folder"
	case catalog.PickExportDest:
		return "the export destination"
	case catalog.PickImportSource:
		return "the bundle to import"
	case catalog.PickMediaDest:
		return "the media card"
	}
	return string(purpose)
}

// Compile-time check
var _ catalog.Picker = (*terminalPicker)(nil)
