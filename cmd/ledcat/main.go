package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/abhibansal60/led-catalog/internal/app"
	"github.com/abhibansal60/led-catalog/internal/catalog"
	"github.com/abhibansal60/led-catalog/internal/config"
	"github.com/abhibansal60/led-catalog/internal/exchange"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// wipeGate is the static confirmation phrase required to wipe the
// catalog, on top of --yes. It exists purely to stop an accidental
// trigger of the reset path.
const wipeGate = "erase all programs"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a CatalogApp around the given
// picker. The caller must defer a.Close(). operation identifies the
// CLI command being run (e.g. "Add", "Export").
func newApp(picker catalog.Picker, operation string) (*app.CatalogApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewCatalogApp(cfg, picker, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// run wraps a command body so failures mark the operation before the
// closing log line is written.
func run(a *app.CatalogApp, body func() error) error {
	err := body()
	if err != nil {
		a.Fail()
	}
	if cerr := a.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// readPassphrase prompts without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Print(prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(raw), nil
}

var rootCmd = &cobra.Command{
	Use:   "ledcat",
	Short: "Offline catalog for LED controller program files",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Generate a new device ID; it doubles as the default mirror slot.
		deviceID := uuid.New().String()

		cfg := config.NewConfig(deviceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Device ID: %s\n", deviceID)
		fmt.Printf("Base Dir:  %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Device ID:  %s\n", cfg.DeviceID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Store:      %s (%s)\n", cfg.Store.Type, cfg.Store.DataDir)
		fmt.Printf("Mirror:     %s (slot %s)\n", cfg.Mirror.Type, cfg.Mirror.Slot)
		fmt.Printf("Media name: %s\n", cfg.Media.CanonicalName)
		return nil
	},
}

// folder command
var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage the bound program folder",
}

var folderBindCmd = &cobra.Command{
	Use:   "bind",
	Short: "Pick and bind the program folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		folder, _ := cmd.Flags().GetString("folder")

		picker := newTerminalPicker()
		picker.Preset(catalog.PickBind, folder)

		a, err := newApp(picker, "BindFolder")
		if err != nil {
			return err
		}
		return run(a, func() error {
			dir, err := a.BindFolder()
			if err != nil {
				return err
			}
			if dir == nil {
				fmt.Println("Canceled.")
				return nil
			}
			fmt.Printf("Program folder bound: %s\n", dir.Path())
			return nil
		})
	},
}

var folderStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "View the folder binding",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newTerminalPicker(), "FolderStatus")
		if err != nil {
			return err
		}
		return run(a, func() error {
			st, err := a.FolderStatus()
			if err != nil {
				return err
			}
			if st.Binding == nil {
				fmt.Println("No program folder bound.")
				return nil
			}
			fmt.Printf("Folder:     %s\n", st.Binding.Path)
			fmt.Printf("Permission: %s\n", st.Binding.Permission)
			fmt.Printf("Bound at:   %s\n", st.Binding.BoundAt.Format("2006-01-02 15:04:05"))
			if st.Usable {
				fmt.Println("State:      usable")
			} else {
				fmt.Printf("State:      not usable (%s)\n", st.Problem)
			}
			return nil
		})
	},
}

var folderUnbindCmd = &cobra.Command{
	Use:   "unbind",
	Short: "Forget the bound folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newTerminalPicker(), "UnbindFolder")
		if err != nil {
			return err
		}
		return run(a, func() error {
			if err := a.UnbindFolder(); err != nil {
				return err
			}
			fmt.Println("Program folder unbound. Records and files were left alone.")
			return nil
		})
	},
}

// add command
var addCmd = &cobra.Command{
	Use:   "add FILE",
	Short: "Add a program to the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		description, _ := cmd.Flags().GetString("desc")
		photo, _ := cmd.Flags().GetString("photo")
		folder, _ := cmd.Flags().GetString("folder")

		if name == "" {
			base := filepath.Base(args[0])
			name = strings.TrimSuffix(base, filepath.Ext(base))
		}

		picker := newTerminalPicker()
		picker.Preset(catalog.PickBind, folder)

		a, err := newApp(picker, "Add")
		if err != nil {
			return err
		}
		return run(a, func() error {
			p, err := a.AddProgram(args[0], name, description, photo)
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Println("Canceled.")
				return nil
			}
			fmt.Printf("Added %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged programs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newTerminalPicker(), "List")
		if err != nil {
			return err
		}
		return run(a, func() error {
			entries, err := a.ListPrograms()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("Catalog is empty.")
				return nil
			}
			for _, e := range entries {
				size := "?"
				if e.Program.FileSizeBytes != nil {
					size = fmt.Sprintf("%d", *e.Program.FileSizeBytes)
				}
				marker := ""
				if e.FileMissing {
					marker = "  [file missing]"
				}
				fmt.Printf("%s  %-30s  %8s  %s%s\n",
					e.Program.ID,
					e.Program.Name,
					size,
					e.Program.DateAdded.Format("2006-01-02"),
					marker,
				)
			}
			return nil
		})
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newTerminalPicker(), "Show")
		if err != nil {
			return err
		}
		return run(a, func() error {
			p, err := a.GetProgram(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("ID:          %s\n", p.ID)
			fmt.Printf("Name:        %s\n", p.Name)
			if p.Description != "" {
				fmt.Printf("Description: %s\n", p.Description)
			}
			fmt.Printf("File:        %s (original: %s)\n", p.StoredFileName, p.OriginalFileName)
			if p.FileSizeBytes != nil {
				fmt.Printf("Size:        %d bytes\n", *p.FileSizeBytes)
			} else {
				fmt.Printf("Size:        unknown\n")
			}
			fmt.Printf("Added:       %s\n", p.DateAdded.Format("2006-01-02 15:04:05"))
			if p.Photo != nil {
				fmt.Printf("Photo:       %s, %d bytes\n", p.Photo.MIME, len(p.Photo.Data))
			}
			return nil
		})
	},
}

// edit command
var editCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Edit a program's details or replace its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.EditOptions{}
		if cmd.Flags().Changed("name") {
			v, _ := cmd.Flags().GetString("name")
			opts.Name = &v
		}
		if cmd.Flags().Changed("desc") {
			v, _ := cmd.Flags().GetString("desc")
			opts.Description = &v
		}
		opts.PhotoPath, _ = cmd.Flags().GetString("photo")
		opts.RemovePhoto, _ = cmd.Flags().GetBool("remove-photo")
		opts.FilePath, _ = cmd.Flags().GetString("file")
		folder, _ := cmd.Flags().GetString("folder")

		picker := newTerminalPicker()
		picker.Preset(catalog.PickBind, folder)

		a, err := newApp(picker, "Edit")
		if err != nil {
			return err
		}
		return run(a, func() error {
			p, err := a.EditProgram(args[0], opts)
			if err != nil {
				return err
			}
			if p == nil {
				fmt.Println("Canceled.")
				return nil
			}
			fmt.Printf("Updated %s (%s)\n", p.Name, p.ID)
			return nil
		})
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a program and its file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newTerminalPicker(), "Delete")
		if err != nil {
			return err
		}
		return run(a, func() error {
			if err := a.DeleteProgram(args[0]); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		})
	},
}

// copy command
var copyCmd = &cobra.Command{
	Use:   "copy ID",
	Short: "Copy a program to a media card under the controller's name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")
		folder, _ := cmd.Flags().GetString("folder")

		picker := newTerminalPicker()
		picker.Preset(catalog.PickMediaDest, dest)
		picker.Preset(catalog.PickBind, folder)

		a, err := newApp(picker, "Copy")
		if err != nil {
			return err
		}
		return run(a, func() error {
			res, err := a.CopyToMedia(args[0])
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Println("Canceled.")
				return nil
			}
			fmt.Printf("Copied to %s\n", res.ProgramPath)
			fmt.Printf("Note:      %s\n", res.NotePath)
			return nil
		})
	},
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as a bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, _ := cmd.Flags().GetString("dest")
		folder, _ := cmd.Flags().GetString("folder")
		seal, _ := cmd.Flags().GetBool("seal")

		var passphrase string
		if seal {
			p1, err := readPassphrase("Passphrase for sealed bundle: ")
			if err != nil {
				return err
			}
			p2, err := readPassphrase("Confirm passphrase: ")
			if err != nil {
				return err
			}
			if p1 != p2 {
				return fmt.Errorf("passphrases do not match")
			}
			if p1 == "" {
				return fmt.Errorf("empty passphrase")
			}
			passphrase = p1
		}

		picker := newTerminalPicker()
		picker.Preset(catalog.PickExportDest, dest)
		picker.Preset(catalog.PickBind, folder)

		a, err := newApp(picker, "Export")
		if err != nil {
			return err
		}
		return run(a, func() error {
			res, err := a.Export(passphrase)
			if err != nil {
				return err
			}
			if res == nil {
				fmt.Println("Canceled.")
				return nil
			}
			fmt.Printf("Exported %d program(s) to %s\n", res.Exported, res.BundleDir)
			if res.Missing > 0 {
				fmt.Printf("%d file(s) were missing or unreadable; the manifest records them.\n", res.Missing)
			}
			switch res.MirrorState {
			case exchange.MirrorPublished:
				fmt.Println("Mirror updated.")
			case exchange.MirrorFailed:
				fmt.Println("Mirror update failed; the export itself succeeded.")
			}
			return nil
		})
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a previously exported bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		folder, _ := cmd.Flags().GetString("folder")

		picker := newTerminalPicker()
		picker.Preset(catalog.PickImportSource, source)
		picker.Preset(catalog.PickBind, folder)

		a, err := newApp(picker, "Import")
		if err != nil {
			return err
		}
		return run(a, func() error {
			res, err := a.Import("")
			if errors.Is(err, exchange.ErrSealedBundle) {
				// Sealed bundle: ask for the passphrase and go again. The
				// preset picker re-answers the source prompt identically.
				passphrase, perr := readPassphrase("Bundle passphrase: ")
				if perr != nil {
					return perr
				}
				res, err = a.Import(passphrase)
			}
			if err != nil {
				printImportSummary(res)
				return err
			}
			if res == nil {
				fmt.Println("Canceled.")
				return nil
			}
			printImportSummary(res)
			return nil
		})
	},
}

func printImportSummary(res *exchange.ImportResult) {
	if res == nil {
		return
	}
	fmt.Printf("Imported %d, duplicates %d, missing files %d, failed %d\n",
		res.Imported, res.Duplicates, res.Missing, res.Failed)
	for _, item := range res.Items {
		if item.Outcome == exchange.OutcomeImported {
			continue
		}
		if item.Detail != "" {
			fmt.Printf("  %-30s  %s: %s\n", item.Name, item.Outcome, item.Detail)
		} else {
			fmt.Printf("  %-30s  %s\n", item.Name, item.Outcome)
		}
	}
}

// wipe command
var wipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Delete every program record and file",
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("wipe deletes the entire catalog; pass --yes to continue")
		}

		phrase, err := readPassphrase(fmt.Sprintf("Type %q to confirm: ", wipeGate))
		if err != nil {
			return err
		}
		if phrase != wipeGate {
			return fmt.Errorf("confirmation phrase did not match, nothing deleted")
		}

		a, err := newApp(newTerminalPicker(), "Wipe")
		if err != nil {
			return err
		}
		return run(a, func() error {
			res, err := a.Wipe()
			if res != nil {
				fmt.Printf("Removed %d record(s), deleted %d file(s)\n", res.Removed, res.FilesDeleted)
			}
			return err
		})
	},
}

// mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Inspect the manifest mirror",
}

var mirrorFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the manifest last published to the mirror slot",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(newTerminalPicker(), "MirrorFetch")
		if err != nil {
			return err
		}
		return run(a, func() error {
			m, err := a.FetchMirror()
			if err != nil {
				return err
			}
			if m == nil {
				fmt.Println("Mirror slot is empty.")
				return nil
			}
			fmt.Printf("Programs:  %d\n", m.ProgramCount)
			fmt.Printf("Exported:  %s\n", m.ExportedAt.Format("2006-01-02 15:04:05"))
			for _, entry := range m.Entries {
				exported := "not exported"
				if entry.ExportedFileName != nil {
					exported = *entry.ExportedFileName
				}
				fmt.Printf("  %-30s  %s\n", entry.Name, exported)
			}
			return nil
		})
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// folder subcommands
	folderCmd.AddCommand(folderBindCmd)
	folderBindCmd.Flags().String("folder", "", "Bind this directory instead of prompting")
	folderCmd.AddCommand(folderStatusCmd)
	folderCmd.AddCommand(folderUnbindCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(folderCmd)

	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("name", "", "Program name (default: file name)")
	addCmd.Flags().String("desc", "", "Program description")
	addCmd.Flags().String("photo", "", "Photo file (JPEG or PNG)")
	addCmd.Flags().String("folder", "", "Program folder to bind if none is bound")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)

	rootCmd.AddCommand(editCmd)
	editCmd.Flags().String("name", "", "New program name")
	editCmd.Flags().String("desc", "", "New description")
	editCmd.Flags().String("photo", "", "New photo file (JPEG or PNG)")
	editCmd.Flags().Bool("remove-photo", false, "Remove the photo")
	editCmd.Flags().String("file", "", "Replacement program file")
	editCmd.Flags().String("folder", "", "Program folder to bind if none is bound")

	rootCmd.AddCommand(deleteCmd)

	rootCmd.AddCommand(copyCmd)
	copyCmd.Flags().String("dest", "", "Media directory instead of prompting")
	copyCmd.Flags().String("folder", "", "Program folder to bind if none is bound")

	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().String("dest", "", "Destination directory instead of prompting")
	exportCmd.Flags().String("folder", "", "Program folder to bind if none is bound")
	exportCmd.Flags().Bool("seal", false, "Seal the bundle with a passphrase")

	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("source", "", "Bundle directory instead of prompting")
	importCmd.Flags().String("folder", "", "Program folder to bind if none is bound")

	rootCmd.AddCommand(wipeCmd)
	wipeCmd.Flags().Bool("yes", false, "Confirm the wipe")

	mirrorCmd.AddCommand(mirrorFetchCmd)
	rootCmd.AddCommand(mirrorCmd)
}
