// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package state

// ServerInfo is the sampled host health: CPU, RAM and network throughput.
// Runtime-only; refreshed once per second by the sysinfo sampler.
type ServerInfo struct {
	CPUUsage *float64 `json:"cpuUsage,omitempty"` // percent, all cores aggregated
	CPUCores *int32   `json:"cpuCores,omitempty"`
	RAMTotal *float64 `json:"ramTotal,omitempty"` // MB
	RAMFree  *float64 `json:"ramFree,omitempty"`  // MB
	TxDelta  *float64 `json:"txDelta,omitempty"`  // MB/s summed over interfaces
	RxDelta  *float64 `json:"rxDelta,omitempty"`  // MB/s summed over interfaces
	ErrorMsg *string  `json:"errorMsg,omitempty"`
}

// Clone copies the info.
func (i ServerInfo) Clone() ServerInfo {
	out := i
	out.CPUUsage = cloneFloat(i.CPUUsage)
	out.CPUCores = cloneInt32(i.CPUCores)
	out.RAMTotal = cloneFloat(i.RAMTotal)
	out.RAMFree = cloneFloat(i.RAMFree)
	out.TxDelta = cloneFloat(i.TxDelta)
	out.RxDelta = cloneFloat(i.RxDelta)
	if i.ErrorMsg != nil {
		m := *i.ErrorMsg
		out.ErrorMsg = &m
	}
	return out
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt32(v *int32) *int32 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
