// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/heyqbnk/mini-apps-backend-template/fanout"
)

type coordinatorConfig struct {
	executable string
	// args are the coordinator's own arguments, passed on to workers.
	args    []string
	workers int
	logger  *slog.Logger
}

type workerProcess struct {
	index   int
	command *exec.Cmd
	peer    *fanout.Peer
	err     error
}

// workerArgs returns args with any --worker-index flag replaced by
// index.
func workerArgs(args []string, index int) []string {
	out := make([]string, 0, len(args)+1)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--worker-index" {
			i++
			continue
		}
		if strings.HasPrefix(arg, "--worker-index=") {
			continue
		}
		out = append(out, arg)
	}
	return append(out, "--worker-index="+strconv.Itoa(index))
}

// startWorker re-executes the binary with one end of a fresh socketpair
// as fd 3 and attaches the other end to coordinator.
func startWorker(cfg coordinatorConfig, coordinator *fanout.Coordinator, index int) (*workerProcess, error) {
	coordinatorEnd, workerEnd, err := fanout.SocketPair()
	if err != nil {
		return nil, err
	}
	conn, err := fanout.FileConn(coordinatorEnd)
	if err != nil {
		workerEnd.Close()
		return nil, err
	}

	command := exec.Command(cfg.executable, workerArgs(cfg.args, index)...)
	command.Env = os.Environ()
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr
	command.ExtraFiles = []*os.File{workerEnd} // becomes fd 3 in the child

	if err := command.Start(); err != nil {
		conn.Close()
		workerEnd.Close()
		return nil, fmt.Errorf("starting worker %d: %w", index, err)
	}
	// The child holds its own copy; ours would keep the socket open
	// after the worker exits.
	workerEnd.Close()

	name := "worker-" + strconv.Itoa(index)
	peer := coordinator.Attach(name, conn)
	cfg.logger.Info("worker started", "worker", index, "pid", command.Process.Pid)
	return &workerProcess{index: index, command: command, peer: peer}, nil
}

// runCoordinator starts the workers and relays between them until ctx
// is cancelled, then forwards SIGTERM and waits for every worker. An
// exited worker is not replaced; when none are left it returns an
// error.
func runCoordinator(ctx context.Context, cfg coordinatorConfig) error {
	coordinator := fanout.NewCoordinator(fanout.CoordinatorConfig{Logger: cfg.logger})
	defer coordinator.Close()

	exited := make(chan *workerProcess, cfg.workers)
	running := 0
	var workers []*workerProcess
	for index := range cfg.workers {
		worker, err := startWorker(cfg, coordinator, index)
		if err != nil {
			signalWorkers(workers, syscall.SIGTERM, cfg.logger)
			for ; running > 0; running-- {
				<-exited
			}
			return err
		}
		workers = append(workers, worker)
		running++
		go func() {
			worker.err = worker.command.Wait()
			exited <- worker
		}()
	}

	for running > 0 {
		select {
		case <-ctx.Done():
			cfg.logger.Info("stopping workers", "running", running)
			signalWorkers(workers, syscall.SIGTERM, cfg.logger)
			for ; running > 0; running-- {
				logExit(cfg.logger, <-exited)
			}
			return nil
		case worker := <-exited:
			running--
			logExit(cfg.logger, worker)
		}
	}
	return fmt.Errorf("all %d workers exited", cfg.workers)
}

func signalWorkers(workers []*workerProcess, signal syscall.Signal, logger *slog.Logger) {
	for _, worker := range workers {
		err := worker.command.Process.Signal(signal)
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			logger.Warn("signalling worker", "worker", worker.index, "error", err)
		}
	}
}

// logExit runs after Wait. The worker's peer closes on its own once
// the socket reports EOF.
func logExit(logger *slog.Logger, worker *workerProcess) {
	if worker.err != nil {
		logger.Warn("worker exited", "worker", worker.index, "dropped_messages", worker.peer.Dropped(), "error", worker.err)
		return
	}
	logger.Info("worker exited", "worker", worker.index, "dropped_messages", worker.peer.Dropped())
}
