package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"

	"github.com/valence-labs/corechain/pkg/domain"
)

func runSend(args []string) error {
	fs := newFlagSet("send")
	label := fs.String("label", "swap", "authorization label to invoke")
	message := fs.String("message", `{"swap":{}}`, "single-top-key JSON message")
	caller := fs.String("caller", "sim1caller", "sending address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env := newDemoEnv()
	result, err := env.inst.Instantiate(context.Background(), demoDeployer, demoConfig("sim1owner"))
	if err != nil {
		return fmt.Errorf("send: instantiate: %w", err)
	}

	execId, err := result.Manager.SendMsgs(context.Background(), *caller, *label, [][]byte{[]byte(*message)}, domain.TTL{})
	if err != nil {
		return fmt.Errorf("send_msgs: %w", err)
	}

	color.New(color.FgGreen, color.Bold).Printf("accepted execution %d\n", execId)
	fmt.Println("run `programctl tick` against the same demo state to see it dispatch (fresh instance; this demo does not persist across invocations)")
	return nil
}
