package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CyCoreSystems/amigo/ami"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Send a Ping action and print the response",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()

			res, err := conn.SendAction("Ping", ami.Message{}).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Println(res.Headers)
			return nil
		},
	}
}

func sendActionCmd() *cobra.Command {
	var fields []string

	cmd := &cobra.Command{
		Use:   "action <name>",
		Short: "Send an arbitrary action and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := ami.Message{}
			for _, f := range fields {
				key, value, ok := splitField(f)
				if !ok {
					return fmt.Errorf("amigo: malformed --field %q, want key=value", f)
				}
				m[key] = value
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			res, err := conn.SendAction(args[0], m).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Println(res.Headers)
			if res.Body != nil {
				fmt.Println(*res.Body)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&fields, "field", nil, "key=value action field, may be repeated")
	return cmd
}

func splitField(s string) (key, value string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
