// Command scale-sensor reads a load cell through an HX711 and publishes weight changes to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/scale-sensor/internal/config"
	"github.com/sweeney/scale-sensor/internal/gpio"
	"github.com/sweeney/scale-sensor/internal/hx711"
	"github.com/sweeney/scale-sensor/internal/logic"
	"github.com/sweeney/scale-sensor/internal/mqtt"
	"github.com/sweeney/scale-sensor/internal/status"
	"github.com/sweeney/scale-sensor/internal/web"
)

func main() {
	configPath := flag.String("config", "/etc/scale-sensor.yaml", "YAML config file (defaults are used if it does not exist)")
	broker := flag.String("broker", "", `MQTT broker address, overrides config ("off" disables)`)
	httpAddr := flag.String("http", "", `HTTP status address, overrides config ("off" disables)`)
	printWeight := flag.Bool("print-weight", false, "Tare, print one reading and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyOverrides(cfg, *broker, *httpAddr)

	if err := run(cfg, *printWeight); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyOverrides applies non-empty flag values on top of the config file.
func applyOverrides(cfg *config.Config, broker, httpAddr string) {
	switch broker {
	case "":
	case "off":
		cfg.MQTT.Broker = ""
	default:
		cfg.MQTT.Broker = broker
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP.Addr = ""
	default:
		cfg.HTTP.Addr = httpAddr
	}
}

func run(cfg *config.Config, printWeight bool) error {
	ctx := context.Background()

	// Initialize GPIO
	bus, err := gpio.NewRealBus(cfg.GPIO.Chip, cfg.GPIO.PinData, cfg.GPIO.PinClock)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer bus.Close()

	dev := hx711.New(bus, hx711.SystemClock{}, cfg.Timing())
	if err := dev.Init(); err != nil {
		return fmt.Errorf("init hx711: %w", err)
	}

	// Print weight mode
	if printWeight {
		offset, err := dev.Tare(ctx)
		if err != nil {
			return fmt.Errorf("tare: %w", err)
		}
		r, err := dev.Read(ctx)
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("offset=%d raw=%d net=%d weight=%d\n", offset, r.Raw, r.Net, r.Weight)
		return nil
	}

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = discardPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	} else {
		log.Printf("mqtt disabled")
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	tarer := &scaleTarer{dev: dev, tracker: tracker, publisher: publisher, now: time.Now}
	if _, err := tarer.Tare(ctx); err != nil {
		return fmt.Errorf("initial tare: %w", err)
	}

	// Publish startup event with full status snapshot
	tracker.SetMQTTConnected(publisher.IsConnected())
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, tarer)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	mon := cfg.Monitor
	log.Printf("started: poll=%v debounce=%v threshold=%d broker=%s heartbeat=%v",
		mon.Poll, mon.Debounce, mon.Threshold, cfg.MQTT.Broker, mon.Heartbeat)

	ticker := time.NewTicker(mon.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(dev, publisher, publisher, tracker, mon, time.Now, ticker.C, sigCh)
}

// Scale is the part of hx711.Device the poll loop needs.
type Scale interface {
	Read(ctx context.Context) (hx711.Reading, error)
}

func runLoop(scale Scale, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, mon config.MonitorConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	detector := logic.NewDetector(mon.Debounce, mon.Threshold, startTime)

	// A signal cancels any read blocked waiting for the device, then is
	// handled by the loop below.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := make(chan os.Signal, 1)
	go func() {
		select {
		case s := <-sig:
			stop <- s
			cancel()
		case <-ctx.Done():
		}
	}()

	var offset int64
	var haveOffset bool

	for {
		select {
		case s := <-stop:
			log.Printf("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			r, err := scale.Read(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					// Shutting down
					continue
				}
				log.Printf("scale read error: %v", err)
				if tracker != nil {
					tracker.RecordError(err)
				}
				continue
			}
			if tracker != nil {
				tracker.SetReading(r, t)
			}

			// A tare moved the zero point; the old stable value no longer applies.
			if haveOffset && r.Offset != offset {
				log.Printf("offset changed (%d -> %d), re-establishing baseline", offset, r.Offset)
				detector.Rebaseline()
			}
			offset, haveOffset = r.Offset, true

			event := detector.Process(logic.Input{
				Raw:    r.Raw,
				Net:    r.Net,
				Weight: r.Weight,
				Time:   t,
			})
			if event != nil {
				log.Printf("event: %s (net %d -> %d, weight=%d)", event.Type, event.Previous, event.Net, event.Weight)
				if err := publisher.Publish(*event); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			}

			if tracker != nil {
				tracker.Update(detector.Stable(), detector.IsBaselined(), detector.EventCountsSnapshot())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if !detector.IsBaselined() {
				// Still waiting for baseline
				continue
			}

			// Check for heartbeat
			if hbData := detector.CheckHeartbeat(t, mon.Heartbeat); hbData != nil {
				log.Printf("heartbeat: uptime=%v up=%d down=%d stable=%d",
					hbData.Uptime, hbData.Counts.Up, hbData.Counts.Down, detector.Stable())

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// scaleTarer tares the device and reports the new offset to the tracker and
// broker. Used for the startup tare and by the HTTP tare endpoint.
type scaleTarer struct {
	dev       interface{ Tare(context.Context) (int64, error) }
	tracker   *status.Tracker
	publisher mqtt.Publisher
	now       func() time.Time
}

func (s *scaleTarer) Tare(ctx context.Context) (int64, error) {
	offset, err := s.dev.Tare(ctx)
	if err != nil {
		log.Printf("tare failed: %v (offset stays %d)", err, offset)
		return offset, err
	}
	log.Printf("tare complete: offset=%d", offset)

	s.tracker.SetTare(offset, s.now())
	snap := s.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "TARE",
		RawPayload: status.FormatStatusEvent(snap, "TARE", ""),
	}
	if err := s.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish tare event: %v", err)
	}
	return offset, nil
}

// discardPublisher is used when MQTT is disabled.
type discardPublisher struct{}

func (discardPublisher) Publish(logic.Event) error            { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                         { return nil }
func (discardPublisher) IsConnected() bool                    { return false }

func statusConfig(cfg *config.Config) status.Config {
	return status.Config{
		PollMs:      cfg.Monitor.Poll.Milliseconds(),
		DebounceMs:  cfg.Monitor.Debounce.Milliseconds(),
		HeartbeatMs: cfg.Monitor.Heartbeat.Milliseconds(),
		Threshold:   cfg.Monitor.Threshold,
		TareSamples: cfg.HX711.TareSamples,
		PinData:     cfg.GPIO.PinData,
		PinClock:    cfg.GPIO.PinClock,
		Broker:      cfg.MQTT.Broker,
		HTTPAddr:    cfg.HTTP.Addr,
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
