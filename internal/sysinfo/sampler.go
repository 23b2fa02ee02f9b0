// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package sysinfo samples host health (CPU, RAM, network throughput) out of
// procfs into the ServerInfo cell, once a second.
package sysinfo

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
	"github.com/rs/zerolog"

	"github.com/ManuGH/restreamer/internal/log"
	"github.com/ManuGH/restreamer/internal/state"
)

const sampleInterval = time.Second

// Sampler writes periodic host measurements into the store.
type Sampler struct {
	store  *state.Store
	fs     procfs.FS
	logger zerolog.Logger

	// previous totals for delta-based gauges
	prevCPU   *procfs.CPUStat
	prevNet   map[string]procfs.NetDevLine
	prevNetAt time.Time
}

// NewSampler opens procfs; fails on hosts without one.
func NewSampler(store *state.Store) (*Sampler, error) {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		return nil, err
	}
	return &Sampler{
		store:  store,
		fs:     fs,
		logger: log.WithComponent("sysinfo"),
	}, nil
}

// Run samples until ctx ends.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		s.store.ServerInfo.Update(func(info *state.ServerInfo) {
			*info = s.sample()
		})
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sampler) sample() state.ServerInfo {
	var info state.ServerInfo

	if err := s.sampleCPU(&info); err != nil {
		s.fail(&info, "cannot read cpu stats", err)
	}
	if err := s.sampleMemory(&info); err != nil {
		s.fail(&info, "cannot read memory stats", err)
	}
	if err := s.sampleNetwork(&info); err != nil {
		s.fail(&info, "cannot read network stats", err)
	}
	return info
}

func (s *Sampler) fail(info *state.ServerInfo, msg string, err error) {
	s.logger.Warn().Err(err).Msg(msg)
	if info.ErrorMsg == nil {
		m := msg + ": " + err.Error()
		info.ErrorMsg = &m
	}
}

func (s *Sampler) sampleCPU(info *state.ServerInfo) error {
	stat, err := s.fs.Stat()
	if err != nil {
		return err
	}
	cores := int32(len(stat.CPU))
	info.CPUCores = &cores

	cur := stat.CPUTotal
	if s.prevCPU != nil {
		busy := cpuBusy(cur) - cpuBusy(*s.prevCPU)
		total := busy + (cur.Idle + cur.Iowait) - (s.prevCPU.Idle + s.prevCPU.Iowait)
		if total > 0 {
			usage := 100 * busy / total
			info.CPUUsage = &usage
		}
	}
	s.prevCPU = &cur
	return nil
}

func cpuBusy(c procfs.CPUStat) float64 {
	return c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal
}

func (s *Sampler) sampleMemory(info *state.ServerInfo) error {
	mi, err := s.fs.Meminfo()
	if err != nil {
		return err
	}
	if mi.MemTotal != nil {
		total := float64(*mi.MemTotal) / 1024 // kB → MB
		info.RAMTotal = &total
	}
	if mi.MemAvailable != nil {
		free := float64(*mi.MemAvailable) / 1024
		info.RAMFree = &free
	}
	return nil
}

// sampleNetwork sums byte counters over all non-loopback interfaces and
// reports the per-second delta in MB.
func (s *Sampler) sampleNetwork(info *state.ServerInfo) error {
	nd, err := s.fs.NetDev()
	if err != nil {
		return err
	}
	now := time.Now()
	cur := make(map[string]procfs.NetDevLine, len(nd))
	var txDelta, rxDelta float64
	elapsed := now.Sub(s.prevNetAt).Seconds()

	for name, line := range nd {
		if name == "lo" {
			continue
		}
		cur[name] = line
		prev, ok := s.prevNet[name]
		if !ok || elapsed <= 0 || line.TxBytes < prev.TxBytes {
			continue
		}
		txDelta += float64(line.TxBytes-prev.TxBytes) / elapsed
		rxDelta += float64(line.RxBytes-prev.RxBytes) / elapsed
	}

	if s.prevNet != nil {
		tx := txDelta / (1024 * 1024)
		rx := rxDelta / (1024 * 1024)
		info.TxDelta = &tx
		info.RxDelta = &rx
	}
	s.prevNet = cur
	s.prevNetAt = now
	return nil
}
