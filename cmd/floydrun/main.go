// Command floydrun is a thin operational harness over pkg/floyd: it loads a
// JSON-encoded bytecode program, calls one exported function with
// JSON-decoded arguments, and prints the result plus any captured `print`
// output. It is not the Floyd language CLI — there is no parser or
// compiler here, only the already-compiled program format pkg/floyd reads.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marcusz/Floyd-sub000/pkg/config"
	"github.com/marcusz/Floyd-sub000/pkg/floyd"
)

var logger = logrus.New()

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	viper.AutomaticEnv()

	root := &cobra.Command{Use: "floydrun"}
	root.AddCommand(runCmd())
	root.AddCommand(disasmCmd())
	if err := root.Execute(); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		fnName   string
		argsJSON string
		envName  string
	)
	cmd := &cobra.Command{
		Use:   "run <program.json>",
		Short: "load a compiled Floyd program and call one function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if level, err := logrus.ParseLevel(viper.GetString("FLOYD_LOG_LEVEL")); err == nil {
				logger.SetLevel(level)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read program: %w", err)
			}

			cfg, err := loadConfig(envName)
			if err != nil {
				return err
			}

			rt, err := floyd.LoadProgram(data, floyd.WithLogger(logger), floyd.WithConfig(cfg))
			if err != nil {
				return fmt.Errorf("load program: %w", err)
			}

			argValues, err := decodeCallArgs(argsJSON)
			if err != nil {
				return err
			}

			result, err := rt.Call(fnName, argValues...)
			if err != nil {
				return fmt.Errorf("call %s: %w", fnName, err)
			}

			for _, line := range rt.TakeOutput() {
				fmt.Println(line)
			}
			fmt.Printf("=> %s\n", describeValue(result))
			return nil
		},
	}
	cmd.Flags().StringVar(&fnName, "call", "main", "name of the exported function to call")
	cmd.Flags().StringVar(&argsJSON, "args", "[]", "JSON array of arguments for --call")
	cmd.Flags().StringVar(&envName, "env", "", "additional config environment to merge (cmd/config/<env>.yaml)")
	return cmd
}

func disasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <program.json>",
		Short: "load a compiled Floyd program and print its function table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read program: %w", err)
			}
			spec, err := floyd.DecodeProgramSpec(data)
			if err != nil {
				return err
			}
			for _, fn := range spec.Functions {
				kind := "host"
				if fn.Frame != nil {
					kind = fmt.Sprintf("bytecode (%d instructions)", len(fn.Frame.Code))
				} else if fn.HostIntrinsic != "" {
					kind = "intrinsic:" + fn.HostIntrinsic
				}
				fmt.Printf("%-24s %s\n", fn.Name, kind)
			}
			return nil
		},
	}
}

func loadConfig(env string) (*config.Config, error) {
	cfg, err := config.Load(env)
	if err != nil {
		logger.Warnf("no config file found, using defaults: %v", err)
		return config.Default(), nil
	}
	return cfg, nil
}

// decodeCallArgs parses a JSON array of scalar arguments into floyd.Value:
// bool/number/string literals only, matching the scalar-argument programs
// this harness is meant to exercise (§1 "a small operational tool around
// the core, not the product").
func decodeCallArgs(argsJSON string) ([]floyd.Value, error) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(argsJSON), &raw); err != nil {
		return nil, fmt.Errorf("decode --args: %w", err)
	}
	out := make([]floyd.Value, len(raw))
	for i, v := range raw {
		switch t := v.(type) {
		case bool:
			out[i] = floyd.Bool(t)
		case float64:
			if t == float64(int64(t)) {
				out[i] = floyd.Int(int64(t))
			} else {
				out[i] = floyd.Double(t)
			}
		case string:
			out[i] = floyd.Str(t)
		default:
			return nil, fmt.Errorf("--args[%d]: unsupported JSON value %T", i, v)
		}
	}
	return out, nil
}

func describeValue(v floyd.Value) string {
	data, err := json.Marshal(valueToJSON(v))
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

// valueToJSON renders a floyd.Value as a plain Go value for json.Marshal.
func valueToJSON(v floyd.Value) interface{} {
	switch v.Kind {
	case floyd.KindBool:
		return v.B
	case floyd.KindInt:
		return v.I
	case floyd.KindDouble:
		return v.F
	case floyd.KindString:
		return v.S
	case floyd.KindVector:
		out := make([]interface{}, len(v.Vec))
		for i, e := range v.Vec {
			out[i] = valueToJSON(e)
		}
		return out
	case floyd.KindDict:
		out := make(map[string]interface{}, len(v.Dict))
		for k, e := range v.Dict {
			out[k] = valueToJSON(e)
		}
		return out
	case floyd.KindStruct:
		out := make([]interface{}, len(v.St))
		for i, e := range v.St {
			out[i] = valueToJSON(e)
		}
		return out
	default:
		return fmt.Sprintf("%+v", v)
	}
}
