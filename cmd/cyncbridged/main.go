// Command cyncbridged is the LAN-resident bridge process: it accepts
// TLS connections from physical bridge devices, keeps an in-memory
// device/group registry synchronised against mesh status reports, and
// exposes that state over MQTT and an optional diagnostics HTTP API.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/cyncbridge/cyncbridge/internal/api"
	"github.com/cyncbridge/cyncbridge/internal/bridge"
	"github.com/cyncbridge/cyncbridge/internal/command"
	"github.com/cyncbridge/cyncbridge/internal/config"
	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/eventlog"
	"github.com/cyncbridge/cyncbridge/internal/logging"
	"github.com/cyncbridge/cyncbridge/internal/metrics"
	"github.com/cyncbridge/cyncbridge/internal/mqttio"
	"github.com/cyncbridge/cyncbridge/internal/reconcile"
	"github.com/cyncbridge/cyncbridge/internal/wire"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

const defaultConfigPath = "./config.yaml"

func main() {
	fmt.Printf("cyncbridged %s (%s)\n", version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	if v := os.Getenv("CYNCBRIDGE_CONFIG"); v != "" {
		return v
	}
	return defaultConfigPath
}

// run wires every component together and blocks until ctx is cancelled,
// then tears them down in reverse order. Returning an error keeps exit
// code handling in main and makes the whole startup/shutdown sequence
// testable without a real process.
func run(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging, version)
	logger.Info("starting cyncbridged", "site", cfg.Site.ID)

	registry, err := config.LoadDevices(cfg.Devices.ConfigFile)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	logger.Info("loaded device inventory", "devices", len(registry.ListDevices()), "groups", len(registry.ListGroups()))

	eventDB, err := eventlog.Open(cfg.EventLog)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer eventDB.Close()
	events := eventlog.NewRepository(eventDB)

	var metricsClient *metrics.Client
	if cfg.InfluxDB.Enabled {
		metricsClient, err = metrics.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting metrics sink: %w", err)
		}
		defer metricsClient.Close()
	}

	mqttClient, err := mqttio.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting mqtt: %w", err)
	}
	defer mqttClient.Close()
	mqttClient.SetLogger(logger)

	bridgeRegistry := bridge.NewRegistry()
	deviceIndex := bridge.NewDeviceIndex()
	meshRequester := bridge.NewMeshRequester(bridgeRegistry)

	var mesh command.MeshRefresher
	if cfg.Bridge.MeshRefresh {
		mesh = meshRequester
	}
	worker := command.NewWorker(registry, bridgeRegistry, deviceIndex, mqttClient, mesh, logger)
	queue := command.NewQueue(worker, 64)

	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		Security: cfg.Security,
		Logger:   logger,
		Registry: registry,
		Queue:    queue,
		Events:   events,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("building diagnostics api: %w", err)
	}

	reconciler := reconcile.New(registry, mqttClient, apiServer.Hub())
	reconciler.SetEventRecorder(events)
	if metricsClient != nil {
		reconciler.SetMetricsSink(metricsClient)
	}

	router := mqttio.NewRouter(mqttClient, queue)
	if err := router.Start(); err != nil {
		return fmt.Errorf("starting mqtt command router: %w", err)
	}

	cert, err := tls.LoadX509KeyPair(cfg.Bridge.CertFile, cfg.Bridge.KeyFile)
	if err != nil {
		return fmt.Errorf("loading bridge tls certificate: %w", err)
	}
	listenAddr := fmt.Sprintf("%s:%d", cfg.Bridge.Host, cfg.Bridge.Port)
	listener := bridge.NewListener(listenAddr, bridge.TLSConfig(cert), bridgeRegistry, logger,
		newFrameHandler(deviceIndex, worker, reconciler, logger))
	listener.OnIdentified = func(s *bridge.Session) {
		logger.Info("bridge device identified", "queue_id", fmt.Sprintf("%x", s.QueueID()))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return listener.Run(groupCtx) })
	group.Go(func() error { return queue.Run(groupCtx) })

	if err := apiServer.Start(groupCtx); err != nil {
		return fmt.Errorf("starting diagnostics api: %w", err)
	}
	defer apiServer.Close()

	logger.Info("cyncbridged ready", "bridge_addr", listenAddr)
	<-ctx.Done()
	logger.Info("shutdown signal received")

	if err := group.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// newFrameHandler builds the bridge.FrameHandler that turns every
// post-handshake inbound frame into registry updates, ack delivery, and
// mesh-info ingestion.
func newFrameHandler(index *bridge.DeviceIndex, worker *command.Worker, reconciler *reconcile.Reconciler, logger *logging.Logger) bridge.FrameHandler {
	return func(s *bridge.Session, frame wire.Frame) {
		queueID := s.QueueID()

		switch frame.Type {
		case wire.TypeInfo:
			handleStatusFrame(s, queueID, frame, index, reconciler, wire.InfoAck, logger)

		case wire.TypeInternal:
			handleStatusFrame(s, queueID, frame, index, reconciler, wire.InternalAck, logger)

		case wire.TypeControl:
			handleControlFrame(s, queueID, frame, index, worker, reconciler, logger)
		}
	}
}

// handleStatusFrame applies every status entry a 0x43/0x83 payload
// carries (skipping a bare timestamp notification) and acks the frame
// with whichever builder its type requires. Every bridge acks, but only
// the elected primary listener's status reaches the reconciler — a
// second bridge witnessing the same mesh would otherwise double-publish
// and double-record every state change.
func handleStatusFrame(s *bridge.Session, queueID wire.QueueID, frame wire.Frame, index *bridge.DeviceIndex, reconciler *reconcile.Reconciler, ackFor func(byte) ([]byte, error), logger *logging.Logger) {
	if s.IsPrimary() {
		entries, ok := wire.ParseInfoStatusBlock(frame.Payload)
		if ok {
			for _, entry := range entries {
				index.Record(deviceIDOf(entry.ID), queueID)
				if err := reconciler.ApplyStatusEntry(entry); err != nil {
					logger.Debug("status entry for unknown device", "err", err)
				}
			}
		}
	}

	if len(frame.Payload) > 0 {
		if ack, err := ackFor(frame.Payload[0]); err == nil {
			_ = s.Send(ack)
		}
	}
}

func handleControlFrame(s *bridge.Session, queueID wire.QueueID, frame wire.Frame, index *bridge.DeviceIndex, worker *command.Worker, reconciler *reconcile.Reconciler, logger *logging.Logger) {
	if len(frame.Payload) < 8 {
		return
	}

	inner := frame.Payload[8:]
	body, checksumOK, err := wire.DecodeInnerStruct(inner)
	if err != nil {
		logger.Debug("malformed control response", "err", err)
		return
	}
	if !checksumOK {
		logger.Warn("control response checksum mismatch", "queue_id", fmt.Sprintf("%x", queueID))
	}
	msgID := body[0]

	if ack, ok := wire.ParseControlAck(body); ok {
		worker.NotifyAck(queueID, ack)
	} else if infos, ok := wire.ParseMeshInfoReply(body); ok {
		if s.IsPrimary() {
			for _, info := range infos {
				index.Record(deviceIDOf(info.DeviceID), queueID)
			}
			reconciler.ApplyMeshInfo(infos)
		}
		s.MarkMeshKnown()
	}

	if ack, err := wire.ControlResponseAck(queueID, msgID); err == nil {
		_ = s.Send(ack)
	}
}

func deviceIDOf(id uint16) device.ID { return device.ID(id) }
