package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
)

func runInspect(args []string) error {
	fs := newFlagSet("inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env := newDemoEnv()
	result, err := env.inst.Instantiate(context.Background(), demoDeployer, demoConfig("sim1owner"))
	if err != nil {
		return fmt.Errorf("inspect: instantiate: %w", err)
	}

	rec, ok := env.reg.Get(result.ProgramId)
	if !ok {
		return fmt.Errorf("inspect: program %d not found in registry", result.ProgramId)
	}

	bold := color.New(color.Bold)
	bold.Printf("program %d\n", rec.ProgramId)
	fmt.Printf("  owner: %s\n", rec.Config.Owner)
	fmt.Printf("  authorization: %s\n", rec.Data.AuthorizationAddr)
	for conn, addr := range rec.Data.ProcessorAddrs {
		name := conn
		if name == "" {
			name = "main"
		}
		fmt.Printf("  processor[%s]: %s\n", name, addr)
	}

	auth, ok := result.Manager.Authorization("swap")
	if ok {
		fmt.Printf("  authorization %q: state=%s priority=%s max_concurrent=%d in_flight=%d\n",
			auth.Label, auth.State, auth.Priority, auth.MaxConcurrentExecutions, auth.InFlight)
	}

	snap := result.MainEngine.Snapshot()
	fmt.Printf("  main queue: high=%d medium=%d pending=%d\n", snap.HighDepth, snap.MediumDepth, snap.PendingCount)
	return nil
}
