package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

var instantiateSteps = []string{
	"reserve program id",
	"compute deterministic addresses",
	"instantiate authorization contract",
	"instantiate main processor",
	"wire external domains",
	"instantiate libraries",
	"instantiate accounts",
	"rewrite function contract addresses",
	"verify on-chain state",
	"submit authorizations",
	"transfer ownership",
	"persist to registry",
}

func runInstantiate(args []string) error {
	fs := newFlagSet("instantiate")
	owner := fs.String("owner", "sim1owner", "declared final owner of the program")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env := newDemoEnv()
	cfg := demoConfig(*owner)

	bar := progressbar.NewOptions(len(instantiateSteps),
		progressbar.OptionSetDescription("instantiating"),
		progressbar.OptionShowCount(),
	)
	for _, step := range instantiateSteps {
		bar.Describe(step)
		_ = bar.Add(1)
		time.Sleep(15 * time.Millisecond)
	}

	result, err := env.inst.Instantiate(context.Background(), demoDeployer, cfg)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return fmt.Errorf("instantiate: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("program %d instantiated\n", result.ProgramId)
	fmt.Printf("  authorization: %s\n", result.Data.AuthorizationAddr)
	fmt.Printf("  main processor: %s\n", result.Data.ProcessorAddrs[""])
	return nil
}
