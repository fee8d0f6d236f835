package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/woodguard/internal/config"
	"github.com/relabs-tech/woodguard/internal/spectral"
	"github.com/relabs-tech/woodguard/internal/telemetry"
)

// formatEvent renders one telemetry event as a console line.
func formatEvent(ev telemetry.Event) string {
	ts := ev.Time.Format("15:04:05")
	switch ev.Kind {
	case telemetry.KindDetection:
		if ev.Result == nil {
			return fmt.Sprintf("[DETECT] %s phase=%d (no result)", ts, ev.Phase)
		}
		r := ev.Result
		line := fmt.Sprintf(
			"[DETECT] %s phase=%-3d %-8s saw=%8.2f axe=%8.2f chainsaw=%8.2f dom=%6.1fHz n=%d",
			ts, ev.Phase, r.Category, r.Peaks[spectral.Saw], r.Peaks[spectral.Axe], r.Peaks[spectral.Chainsaw], r.DominantHz, r.Samples,
		)
		if ev.Location != nil {
			line += fmt.Sprintf(" lat=%.6f lon=%.6f", ev.Location.Latitude, ev.Location.Longitude)
		}
		return line
	case telemetry.KindPhaseStart:
		return fmt.Sprintf("[PHASE ] %s phase=%-3d attempt=%d remaining=%d", ts, ev.Phase, ev.Attempt, ev.Remaining)
	case telemetry.KindHalted:
		return fmt.Sprintf("[HALT  ] %s remaining=%d %s", ts, ev.Remaining, ev.Message)
	default:
		line := fmt.Sprintf("[%-6s] %s phase=%-3d attempt=%d", shortKind(ev.Kind), ts, ev.Phase, ev.Attempt)
		if ev.Message != "" {
			line += " " + ev.Message
		}
		if ev.Err != "" {
			line += " err=" + ev.Err
		}
		return line
	}
}

func shortKind(k telemetry.Kind) string {
	switch k {
	case telemetry.KindInitFailed:
		return "INIT"
	case telemetry.KindOverflow:
		return "FIFO"
	case telemetry.KindPersistFailed, telemetry.KindRemountFailed:
		return "STORE"
	case telemetry.KindPhaseSkipped:
		return "SKIP"
	}
	return string(k)
}

// RunConsoleMQTT prints every event published by a monitor until interrupted.
func RunConsoleMQTT(cfg *config.Config, zlog *zap.Logger) error {
	client, err := telemetry.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, zlog)
	if err != nil {
		return err
	}

	for _, topic := range []string{cfg.TopicDetection, cfg.TopicPhase} {
		token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			var ev telemetry.Event
			if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
				log.Printf("console: unmarshal error on %s: %v", msg.Topic(), err)
				return
			}
			fmt.Println(formatEvent(ev))
		})
		token.Wait()
		if token.Error() != nil {
			return token.Error()
		}
		log.Printf("console: subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
