package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/valence-labs/corechain/pkg/domain"
)

func runTick(args []string) error {
	fs := newFlagSet("tick")
	label := fs.String("label", "swap", "authorization label to invoke before ticking")
	message := fs.String("message", `{"swap":{}}`, "single-top-key JSON message")
	caller := fs.String("caller", "sim1caller", "address driving both send_msgs and Tick")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env := newDemoEnv()
	result, err := env.inst.Instantiate(context.Background(), demoDeployer, demoConfig("sim1owner"))
	if err != nil {
		return fmt.Errorf("tick: instantiate: %w", err)
	}

	execId, err := result.Manager.SendMsgs(context.Background(), *caller, *label, [][]byte{[]byte(*message)}, domain.TTL{})
	if err != nil {
		return fmt.Errorf("tick: send_msgs: %w", err)
	}
	fmt.Printf("accepted execution %d, now ticking the main processor\n", execId)

	event, err := result.MainEngine.Tick(context.Background(), *caller)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	info, _ := result.Manager.CallbackInfo(execId)
	color.New(color.FgCyan, color.Bold).Printf("tick action: %s\n", event.Action)
	fmt.Printf("execution %d terminal result: %s\n", execId, info.ExecutionResult.Kind)
	return nil
}
