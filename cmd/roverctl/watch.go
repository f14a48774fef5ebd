package main

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"rovercode-go/bus"
	"rovercode-go/services/heartbeat"
	"rovercode-go/services/rover"
)

var watchFor time.Duration

// busEvent is one printed bus message.
type busEvent struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Serve bus requests, run the heartbeat and print everything published under rover/",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newPrinter(cmd.OutOrStdout(), format)
		if err != nil {
			return err
		}
		return withRover(cmd, func(ctx context.Context, svc *rover.Service) (any, error) {
			if watchFor > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, watchFor)
				defer cancel()
			}
			conn := svc.Conn()
			sub := conn.Subscribe(bus.T("rover", bus.MultiLevel))
			defer conn.Unsubscribe(sub)

			hb := heartbeat.New(conn.Bus().NewConnection("heartbeat"), svc.Config().Heartbeat, nil, nil)
			ctx, stop := context.WithCancel(ctx)
			var wg sync.WaitGroup
			// The service is released only after Serve has returned.
			defer wg.Wait()
			defer stop()
			wg.Add(2)
			go func() { defer wg.Done(); _ = svc.Serve(ctx) }()
			go func() { defer wg.Done(); _ = hb.Run(ctx) }()

			for {
				select {
				case <-ctx.Done():
					return nil, nil
				case m, ok := <-sub.Channel():
					if !ok {
						return nil, nil
					}
					if len(m.Topic) > 1 && m.Topic[1] == "get" {
						continue
					}
					if err := out.print(busEvent{Topic: m.Topic.String(), Payload: m.Payload}); err != nil {
						return nil, err
					}
				}
			}
		})
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchFor, "for", 0, "Stop after this long (0 runs until interrupted)")
	rootCmd.AddCommand(watchCmd)
}
