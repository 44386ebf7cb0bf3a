// Command payctl is an operator CLI for a running payadmin instance.
//
//	payctl call -env pre -method account.list [-params '{"currency":"EUR"}']
//	payctl info -env pre -method account.list [-params '{...}']
//	payctl config-test -env prod
//	payctl health
//
// The API address comes from PAYADMIN_API_ADDR (default 127.0.0.1:8080).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/efisher/payadmin/internal/client"
	"github.com/efisher/payadmin/internal/domain/model"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "payctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: payctl <call|info|config-test|health> [flags]")
	}

	addr := os.Getenv("PAYADMIN_API_ADDR")
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	api := client.New("http://" + addr)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "call":
		return runCall(ctx, api, args[1:])
	case "info":
		return runInfo(ctx, api, args[1:])
	case "config-test":
		return runConfigTest(ctx, api, args[1:])
	case "health":
		return api.Health(ctx)
	}
	return fmt.Errorf("unknown command %q", args[0])
}

// callFlags holds the flags shared by call and info.
type callFlags struct {
	env    model.Environment
	method string
	params json.RawMessage
}

func parseCallFlags(name string, args []string) (callFlags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	envName := fs.String("env", "pre", "target environment (pre or prod)")
	method := fs.String("method", "", "backend method name")
	params := fs.String("params", "", "call parameters as a JSON object")
	if err := fs.Parse(args); err != nil {
		return callFlags{}, err
	}

	env, err := model.ParseEnvironment(*envName)
	if err != nil {
		return callFlags{}, err
	}
	if *method == "" {
		return callFlags{}, errors.New("-method is required")
	}

	out := callFlags{env: env, method: *method}
	if *params != "" {
		if !json.Valid([]byte(*params)) {
			return callFlags{}, errors.New("-params is not valid JSON")
		}
		out.params = json.RawMessage(*params)
	}
	return out, nil
}

func runCall(ctx context.Context, api *client.APIClient, args []string) error {
	flags, err := parseCallFlags("call", args)
	if err != nil {
		return err
	}

	payload, fromCache, err := api.Invoke(ctx, flags.env, flags.method, flags.params)
	if err != nil {
		return err
	}

	if fromCache {
		fmt.Fprintln(os.Stderr, "(served from local cache)")
	}
	return printJSON(payload)
}

func runInfo(ctx context.Context, api *client.APIClient, args []string) error {
	flags, err := parseCallFlags("info", args)
	if err != nil {
		return err
	}

	status, err := api.CacheInfo(ctx, flags.env, flags.method, flags.params)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return printJSON(encoded)
}

func runConfigTest(ctx context.Context, api *client.APIClient, args []string) error {
	fs := flag.NewFlagSet("config-test", flag.ContinueOnError)
	envName := fs.String("env", "pre", "target environment (pre or prod)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	env, err := model.ParseEnvironment(*envName)
	if err != nil {
		return err
	}

	payload, err := api.TestConfig(ctx, env)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "credentials for %s verified\n", env)
	return printJSON(payload)
}

// printJSON writes payload to stdout, indented when it re-marshals cleanly.
func printJSON(payload json.RawMessage) error {
	var v any
	if err := json.Unmarshal(payload, &v); err == nil {
		if pretty, err := json.MarshalIndent(v, "", "  "); err == nil {
			fmt.Println(string(pretty))
			return nil
		}
	}
	fmt.Println(string(payload))
	return nil
}
