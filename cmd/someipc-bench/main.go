// Command someipc-bench drives a Client against a loopback daemon
// simulation: it issues RequestService calls at a fixed interval and
// reports throughput and latency until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	someipc "github.com/someipc/go-someipc"
	"github.com/someipc/go-someipc/internal/config"
	"github.com/someipc/go-someipc/internal/ioctx"
	"github.com/someipc/go-someipc/internal/logging"
	"github.com/someipc/go-someipc/internal/wire"
)

func main() {
	var (
		domain   = flag.String("domain", "vehicle-bus", "someipd IPC domain")
		port     = flag.Int("port", 30509, "someipd IPC port")
		interval = flag.Duration("interval", 200*time.Millisecond, "interval between RequestService calls")
		verbose  = flag.Bool("v", false, "verbose output")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := config.Default()
	cfg.SomeipdIPCDomain = *domain
	cfg.SomeipdIPCPort = *port

	dialer := someipc.NewMockDialer(1 << 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := someipc.New(cfg, dialer, &someipc.Options{Logger: logger})
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	readable := make(chan struct{}, 1)
	writable := make(chan struct{}, 1)
	dialer.RecvRing.OnReadableNotify(func() { signalNonBlocking(readable) })
	dialer.SendRing.OnWritableNotify(func() { signalNonBlocking(writable) })

	poller := ioctx.NewGoroutinePoller(readable, writable)
	if err := client.Start(ctx, poller); err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}

	logger.Info("client started", "domain", *domain, "port", *port)
	fmt.Printf("someipc-bench connected to %s:%d\n", *domain, *port)
	fmt.Printf("Press Ctrl+C to stop...\n")
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1024*1024)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== FULL GOROUTINE STACK DUMP ===\n%s\n=== END STACK DUMP ===\n\n", buf[:n])

			filename := fmt.Sprintf("someipc-bench-stacks-%d.txt", time.Now().Unix())
			if f, err := os.Create(filename); err == nil {
				fmt.Fprintf(f, "Goroutine stack dump at %s\nProcess ID: %d\n\n", time.Now().Format(time.RFC3339), os.Getpid())
				f.Write(buf[:n])
				fmt.Fprintf(f, "\n\n=== GOROUTINE PROFILE ===\n")
				pprof.Lookup("goroutine").WriteTo(f, 2)
				f.Close()
				logger.Info("stack trace written to file", "file", filename)
			}
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctrl := client.RegisterController(someipc.MsgRequestService)
	go runDaemonSimulator(ctx, dialer)

loop:
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			reqCtx, reqCancel := context.WithTimeout(ctx, time.Second)
			_, err := ctrl.Invoke(requestServiceFrame(), nil).Wait(reqCtx)
			reqCancel()
			if err != nil {
				logger.Warn("request failed", "error", err)
				continue
			}
			logger.Debug("request completed", "latency", time.Since(start))
		case <-sigCh:
			logger.Info("received shutdown signal")
			break loop
		}
	}

	cancel()

	cleanupDone := make(chan bool)
	go func() {
		if err := client.Stop(); err != nil {
			logger.Error("error stopping client", "error", err)
		} else {
			logger.Info("client stopped successfully")
		}
		cleanupDone <- true
	}()

	select {
	case <-cleanupDone:
	case <-time.After(1 * time.Second):
		logger.Info("cleanup timeout, forcing exit")
	}

	snap := client.Stats()
	fmt.Printf("\nMessages sent: %d, received: %d, errors: %d\n", snap.MessagesSent, snap.MessagesReceived, snap.SendErrors+snap.ReceiveErrors)

	os.Exit(0)
}

func signalNonBlocking(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// requestServiceFrame builds a fully marshaled RequestService control
// request (common header + specific header, no payload) for Invoke.
func requestServiceFrame() []byte {
	common := wire.CommonHeader{
		ProtocolVersion: wire.ProtocolVersion,
		MessageType:     wire.MsgRequestService,
		MessageLength:   wire.SpecificHeaderSize,
	}
	frame := make([]byte, wire.CommonHeaderSize+wire.SpecificHeaderSize)
	wire.MarshalCommonHeader(common, frame[:wire.CommonHeaderSize])
	specific := wire.NewInstanceReservedHeader(0)
	copy(frame[wire.CommonHeaderSize:], specific[:])
	return frame
}

// runDaemonSimulator stands in for a co-located someipd: it reads whatever
// the client writes to the send ring and answers every RequestService
// request with a synthetic success response, so this bench tool can
// exercise a full round trip without a real daemon.
func runDaemonSimulator(ctx context.Context, dialer *someipc.MockDialer) {
	const frameSize = wire.CommonHeaderSize + wire.SpecificHeaderSize
	buf := make([]byte, frameSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if dialer.SendRing.AvailableRead() < frameSize {
			time.Sleep(time.Millisecond)
			continue
		}
		n, err := dialer.SendRing.Read(buf)
		if err != nil || n < frameSize {
			time.Sleep(time.Millisecond)
			continue
		}
		dialer.SendRing.Commit(n)

		common, err := wire.UnmarshalCommonHeader(buf[:wire.CommonHeaderSize])
		if err != nil || common.MessageType != wire.MsgRequestService {
			continue
		}

		respCommon := wire.CommonHeader{
			ProtocolVersion: wire.ProtocolVersion,
			MessageType:     wire.ControlResponseOf(wire.MsgRequestService, true),
			MessageLength:   wire.SpecificHeaderSize + 2,
		}
		resp := make([]byte, wire.CommonHeaderSize+wire.SpecificHeaderSize+2)
		wire.MarshalCommonHeader(respCommon, resp[:wire.CommonHeaderSize])
		returnCode := wire.NewReturnCodeHeader(0)
		copy(resp[wire.CommonHeaderSize:], returnCode[:])
		resp[len(resp)-2] = 0x01
		resp[len(resp)-1] = 0x00

		if dialer.RecvRing.AvailableWrite() < len(resp) {
			continue
		}
		wn, werr := dialer.RecvRing.Write(resp)
		if werr != nil {
			continue
		}
		dialer.RecvRing.Commit(wn)
	}
}
