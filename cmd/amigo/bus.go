package main

import (
	"github.com/CyCoreSystems/amigo/ami"
	"github.com/CyCoreSystems/amigo/bus"
)

// wireBus connects cfg's bus sink (if a URL is configured) and
// registers its Publish method as a handful of Conn/ChannelHandlers
// event hooks, demonstrating the pattern described in the bus
// package's doc comment: the bus package is never imported by ami itself, only
// by application code that chooses to fan events out.
func wireBus(conn *ami.Conn, cfg bus.Config) (bus.Sink, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	sink, err := bus.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := sink.Connect(); err != nil {
		return nil, err
	}

	conn.OnNewChannel(func(name string, ch *ami.Channel) {
		publish := func(event string, fields map[string]string) {
			if fields == nil {
				fields = map[string]string{}
			}
			fields["channel"] = name
			if err := sink.Publish(event, fields); err != nil {
				log.Warn("amigo: bus publish failed", "event", event, "channel", name, "error", err)
			}
		}

		ch.Handlers.NewState = func(state int, desc string) {
			publish("channel.newstate", map[string]string{"state": desc})
		}
		ch.Handlers.HungUp = func(cause int, causeText string) {
			publish("channel.hungup", map[string]string{"cause": causeText})
		}
	})

	conn.OnEvent("peerstatus", func(m ami.Message) {
		if err := sink.Publish("peer.status", m); err != nil {
			log.Warn("amigo: bus publish failed", "event", "peer.status", "error", err)
		}
	})

	return sink, nil
}
