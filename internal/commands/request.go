package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-apiclient/app"
	"github.com/gaborage/go-apiclient/httpclient"
)

var (
	errUnhealthy     = errors.New("credential storage is unhealthy")
	errInvalidData   = errors.New("request body is not valid JSON")
	errInvalidHeader = errors.New("header must look like 'Name: value'")
)

type requestOptions struct {
	headers []string
	retries int
	data    string
}

func (o *requestOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&o.headers, "header", "H", nil, "Extra request header 'Name: value' (repeatable)")
	cmd.Flags().IntVar(&o.retries, "retries", -1, "Retry budget for this call (-1 uses api.retrybudget)")
}

func (o *requestOptions) callOptions() ([]httpclient.CallOption, error) {
	var opts []httpclient.CallOption
	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidHeader, h)
		}
		opts = append(opts, httpclient.WithHeader(name, strings.TrimSpace(value)))
	}
	if o.retries >= 0 {
		opts = append(opts, httpclient.WithRetryBudget(o.retries))
	}
	return opts, nil
}

// body resolves --data: inline JSON, @file or - for stdin. Empty means no body.
func (o *requestOptions) body(cmd *cobra.Command) (any, error) {
	var raw []byte
	switch {
	case o.data == "":
		return nil, nil
	case o.data == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		raw = b
	case strings.HasPrefix(o.data, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(o.data, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		raw = b
	default:
		raw = []byte(o.data)
	}

	if !json.Valid(raw) {
		return nil, errInvalidData
	}
	return json.RawMessage(raw), nil
}

// newReadCommand creates get or delete.
func newReadCommand(open opener, method string) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:     method + " <endpoint>",
		Short:   fmt.Sprintf("Send a %s request and print the result", strings.ToUpper(method)),
		Example: fmt.Sprintf("  apiclient %s /items/1", method),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callOpts, err := opts.callOptions()
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				client := a.Client()
				var result httpclient.Result[json.RawMessage]
				if method == "delete" {
					result = client.Delete(cmd.Context(), args[0], callOpts...)
				} else {
					result = client.Get(cmd.Context(), args[0], callOpts...)
				}
				return printResult(cmd, result)
			})
		},
	}
	opts.bind(cmd)
	return cmd
}

// newWriteCommand creates post, put or patch.
func newWriteCommand(open opener, method string) *cobra.Command {
	opts := &requestOptions{}
	cmd := &cobra.Command{
		Use:   method + " <endpoint>",
		Short: fmt.Sprintf("Send a %s request with a JSON body and print the result", strings.ToUpper(method)),
		Example: fmt.Sprintf(`  apiclient %[1]s /items -d '{"name":"x"}'
  apiclient %[1]s /items -d @item.json`, method),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			callOpts, err := opts.callOptions()
			if err != nil {
				return err
			}
			payload, err := opts.body(cmd)
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(a *app.App) error {
				client := a.Client()
				var result httpclient.Result[json.RawMessage]
				switch method {
				case "put":
					result = client.Put(cmd.Context(), args[0], payload, callOpts...)
				case "patch":
					result = client.Patch(cmd.Context(), args[0], payload, callOpts...)
				default:
					result = client.Post(cmd.Context(), args[0], payload, callOpts...)
				}
				return printResult(cmd, result)
			})
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "JSON body, @file or - for stdin")
	return cmd
}

func printResult(cmd *cobra.Command, result httpclient.Result[json.RawMessage]) error {
	if err := printJSON(cmd, result); err != nil {
		return err
	}
	return result.Err()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
