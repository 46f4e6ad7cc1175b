package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func originateCmd() *cobra.Command {
	var (
		channelName string
		dialCtx     string
		exten       string
		priority    string
		callerID    string
		application string
		data        string
	)

	cmd := &cobra.Command{
		Use:   "originate",
		Short: "Originate a call, to either a dialplan location or an application",
		RunE: func(cmd *cobra.Command, args []string) error {
			if channelName == "" {
				return fmt.Errorf("amigo: --channel is required")
			}

			var cid *string
			if callerID != "" {
				cid = &callerID
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if application != "" {
				res, err := conn.OriginateApp(channelName, application, data, cid).Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Println(res.Headers)
				return nil
			}

			if dialCtx == "" || exten == "" || priority == "" {
				return fmt.Errorf("amigo: either --application or --context/--exten/--priority is required")
			}
			res, err := conn.Originate(channelName, dialCtx, exten, priority, cid).Wait(ctx)
			if err != nil {
				return err
			}
			fmt.Println(res.Headers)
			return nil
		},
	}

	cmd.Flags().StringVar(&channelName, "channel", "", "channel to originate on, e.g. SIP/200")
	cmd.Flags().StringVar(&dialCtx, "context", "", "dialplan context")
	cmd.Flags().StringVar(&exten, "exten", "", "dialplan extension")
	cmd.Flags().StringVar(&priority, "priority", "1", "dialplan priority")
	cmd.Flags().StringVar(&application, "application", "", "application to connect to instead of a dialplan location")
	cmd.Flags().StringVar(&data, "data", "", "application data")
	cmd.Flags().StringVar(&callerID, "calleridnum", "", "caller ID to present")
	return cmd
}
