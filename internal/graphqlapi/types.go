// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"github.com/google/uuid"
	graphql "github.com/graph-gophers/graphql-go"

	"github.com/ManuGH/restreamer/internal/state"
)

func gqlID(id uuid.UUID) graphql.ID { return graphql.ID(id.String()) }

// parseID turns a GraphQL ID back into a UUID; malformed values map onto the
// UNKNOWN error code.
func parseID(id graphql.ID) (uuid.UUID, error) {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil, errUnknown(err)
	}
	return parsed, nil
}

func labelString(l *state.Label) *string {
	if l == nil {
		return nil
	}
	s := string(*l)
	return &s
}

func ptrBool(v bool) *bool { return &v }

type infoResolver struct {
	publicHost string
	settings   state.Settings
}

func (r *infoResolver) PublicHost() string { return r.publicHost }

func (r *infoResolver) Title() *string { return r.settings.Title }

func (r *infoResolver) DeleteConfirmation() bool {
	return r.settings.DeleteConfirmation == nil || *r.settings.DeleteConfirmation
}

func (r *infoResolver) EnableConfirmation() bool {
	return r.settings.EnableConfirmation == nil || *r.settings.EnableConfirmation
}

func (r *infoResolver) PasswordHash() *string { return r.settings.PasswordHash }

func (r *infoResolver) PasswordOutputHash() *string { return r.settings.PasswordOutputHash }

type serverInfoResolver struct {
	info state.ServerInfo
}

func (r *serverInfoResolver) CPUUsage() *float64 { return r.info.CPUUsage }
func (r *serverInfoResolver) CPUCores() *int32   { return r.info.CPUCores }
func (r *serverInfoResolver) RAMTotal() *float64 { return r.info.RAMTotal }
func (r *serverInfoResolver) RAMFree() *float64  { return r.info.RAMFree }
func (r *serverInfoResolver) TxDelta() *float64  { return r.info.TxDelta }
func (r *serverInfoResolver) RxDelta() *float64  { return r.info.RxDelta }
func (r *serverInfoResolver) ErrorMsg() *string  { return r.info.ErrorMsg }

type restreamResolver struct {
	r state.Restream
}

func newRestreamResolvers(rs []state.Restream) []*restreamResolver {
	out := make([]*restreamResolver, len(rs))
	for i, r := range rs {
		out[i] = &restreamResolver{r: r}
	}
	return out
}

func (r *restreamResolver) ID() graphql.ID { return gqlID(r.r.ID) }
func (r *restreamResolver) Key() string    { return string(r.r.Key) }
func (r *restreamResolver) Label() *string { return labelString(r.r.Label) }

func (r *restreamResolver) Input() *inputResolver {
	return &inputResolver{in: r.r.Input}
}

func (r *restreamResolver) Outputs() []*outputResolver {
	out := make([]*outputResolver, len(r.r.Outputs))
	for i, o := range r.r.Outputs {
		out[i] = &outputResolver{o: o}
	}
	return out
}

type inputResolver struct {
	in state.Input
}

func (r *inputResolver) ID() graphql.ID { return gqlID(r.in.ID) }
func (r *inputResolver) Key() string    { return string(r.in.Key) }
func (r *inputResolver) Enabled() bool  { return r.in.Enabled }

func (r *inputResolver) Endpoints() []*endpointResolver {
	out := make([]*endpointResolver, len(r.in.Endpoints))
	for i, e := range r.in.Endpoints {
		out[i] = &endpointResolver{e: e}
	}
	return out
}

func (r *inputResolver) Src() *inputSrcResolver {
	if r.in.Src == nil {
		return nil
	}
	return &inputSrcResolver{src: *r.in.Src}
}

type endpointResolver struct {
	e state.InputEndpoint
}

func (r *endpointResolver) ID() graphql.ID           { return gqlID(r.e.ID) }
func (r *endpointResolver) Kind() state.EndpointKind { return r.e.Kind }
func (r *endpointResolver) Status() state.Status     { return r.e.Status.Norm() }
func (r *endpointResolver) Label() *string           { return labelString(r.e.Label) }

// inputSrcResolver resolves the InputSrc union.
type inputSrcResolver struct {
	src state.InputSrc
}

func (r *inputSrcResolver) ToRemoteInputSrc() (*remoteInputSrcResolver, bool) {
	if r.src.Remote == nil {
		return nil, false
	}
	return &remoteInputSrcResolver{url: *r.src.Remote}, true
}

func (r *inputSrcResolver) ToFailoverInputSrc() (*failoverInputSrcResolver, bool) {
	if r.src.Failover == nil {
		return nil, false
	}
	return &failoverInputSrcResolver{inputs: r.src.Failover}, true
}

type remoteInputSrcResolver struct {
	url state.InputSrcURL
}

func (r *remoteInputSrcResolver) URL() string { return string(r.url) }

type failoverInputSrcResolver struct {
	inputs []state.Input
}

func (r *failoverInputSrcResolver) Inputs() []*inputResolver {
	out := make([]*inputResolver, len(r.inputs))
	for i, in := range r.inputs {
		out[i] = &inputResolver{in: in}
	}
	return out
}

type outputResolver struct {
	o state.Output
}

func (r *outputResolver) ID() graphql.ID          { return gqlID(r.o.ID) }
func (r *outputResolver) Dst() string             { return string(r.o.Dst) }
func (r *outputResolver) Label() *string          { return labelString(r.o.Label) }
func (r *outputResolver) PreviewURL() *string     { return r.o.PreviewURL }
func (r *outputResolver) Volume() *volumeResolver { return &volumeResolver{v: r.o.Volume} }
func (r *outputResolver) Enabled() bool           { return r.o.Enabled }
func (r *outputResolver) Status() state.Status    { return r.o.Status.Norm() }

func (r *outputResolver) Mixins() []*mixinResolver {
	out := make([]*mixinResolver, len(r.o.Mixins))
	for i, m := range r.o.Mixins {
		out[i] = &mixinResolver{m: m}
	}
	return out
}

type volumeResolver struct {
	v state.Volume
}

func (r *volumeResolver) Level() int32 { return int32(r.v.Level) }
func (r *volumeResolver) Muted() bool  { return r.v.Muted }

type mixinResolver struct {
	m state.Mixin
}

func (r *mixinResolver) ID() graphql.ID          { return gqlID(r.m.ID) }
func (r *mixinResolver) Src() string             { return string(r.m.Src) }
func (r *mixinResolver) Volume() *volumeResolver { return &volumeResolver{v: r.m.Volume} }
func (r *mixinResolver) Delay() int32            { return int32(r.m.Delay.Millis()) }
func (r *mixinResolver) Sidechain() bool         { return r.m.Sidechain }
func (r *mixinResolver) Status() state.Status    { return r.m.Status.Norm() }

type clientResolver struct {
	c state.Client
}

func newClientResolvers(cs []state.Client) []*clientResolver {
	out := make([]*clientResolver, len(cs))
	for i, c := range cs {
		out[i] = &clientResolver{c: c}
	}
	return out
}

func (r *clientResolver) ID() string { return string(r.c.ID) }

func (r *clientResolver) Statistics() *clientStatisticsResolver {
	if r.c.Statistics == nil || r.c.Statistics.Data == nil {
		return nil
	}
	return &clientStatisticsResolver{cs: *r.c.Statistics.Data}
}

func (r *clientResolver) Errors() *[]string {
	if r.c.Statistics == nil || len(r.c.Statistics.Errors) == 0 {
		return nil
	}
	errs := r.c.Statistics.Errors
	return &errs
}

type clientStatisticsResolver struct {
	cs state.ClientStatistics
}

func (r *clientStatisticsResolver) ClientTitle() string { return r.cs.ClientTitle }

func (r *clientStatisticsResolver) Timestamp() graphql.Time {
	return graphql.Time{Time: r.cs.Timestamp}
}

func (r *clientStatisticsResolver) Inputs() []*statusStatisticsResolver {
	return newStatusStatisticsResolvers(r.cs.Inputs)
}

func (r *clientStatisticsResolver) Outputs() []*statusStatisticsResolver {
	return newStatusStatisticsResolvers(r.cs.Outputs)
}

func (r *clientStatisticsResolver) ServerInfo() *serverInfoResolver {
	return &serverInfoResolver{info: r.cs.ServerInfo}
}

type statusStatisticsResolver struct {
	s state.StatusStatistics
}

func newStatusStatisticsResolvers(ss []state.StatusStatistics) []*statusStatisticsResolver {
	out := make([]*statusStatisticsResolver, len(ss))
	for i, s := range ss {
		out[i] = &statusStatisticsResolver{s: s}
	}
	return out
}

func (r *statusStatisticsResolver) Status() state.Status { return r.s.Status }
func (r *statusStatisticsResolver) Count() int32         { return r.s.Count }
