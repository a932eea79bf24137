package debugger

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/zplc/zplc-core/vm"
)

// RunCLI runs the command-line debugger interface
func RunCLI(dbg *Debugger) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		// Print prompt
		fmt.Print("(zplc-dbg) ")

		// Read command
		if !scanner.Scan() {
			break
		}

		cmdLine := strings.TrimSpace(scanner.Text())

		// Exit commands
		if cmdLine == "quit" || cmdLine == "q" || cmdLine == "exit" {
			fmt.Println("Exiting debugger...")
			break
		}

		// Execute command
		if err := dbg.ExecuteCommand(cmdLine); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		// Print any output from the debugger
		output := dbg.GetOutput()
		if output != "" {
			fmt.Print(output)
		}

		// If running, execute until breakpoint, watchpoint, or halt
		if dbg.Running {
			for dbg.Running {
				// Check for breakpoint/watchpoint before execution
				if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
					dbg.Running = false
					fmt.Printf("Stopped: %s at PC=0x%04X\n", reason, dbg.VM.PC)
					break
				}

				// Execute one step
				switch dbg.VM.Step() {
				case vm.StatusHalted:
					dbg.Running = false
					fmt.Println("Program halted")
				case vm.StatusFault:
					dbg.Running = false
					fmt.Printf("Fault: %s\n", dbg.VM.LastError)
				case vm.StatusPaused:
					// A VM-armed breakpoint was reached; ShouldBreak on
					// the next iteration reports which one.
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("input error: %w", err)
	}

	return nil
}

// RunTUI runs the TUI (Text User Interface) debugger
func RunTUI(dbg *Debugger) error {
	tui := NewTUI(dbg)
	return tui.Run()
}
