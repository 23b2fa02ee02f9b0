// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package graphqlapi

import (
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	graphql "github.com/graph-gophers/graphql-go"
	"golang.org/x/text/unicode/norm"

	"github.com/ManuGH/restreamer/internal/auth"
	"github.com/ManuGH/restreamer/internal/dvr"
	"github.com/ManuGH/restreamer/internal/spec"
	"github.com/ManuGH/restreamer/internal/state"
)

// Inner input keys synthesized for a restream with a backup source.
const (
	originInputKey state.InputKey = "origin"
	mainInputKey   state.InputKey = "main"
	backupInputKey state.InputKey = "backup"
)

// tsMixinDefaultDelay compensates the voice-chat capture running ahead of
// the re-encoded video.
const tsMixinDefaultDelay = state.Delay(3500 * time.Millisecond)

// Import applies a previously exported JSON document. With restreamId the
// document must hold exactly one restream, applied onto that restream only.
func (r *apiResolver) Import(args struct {
	Spec       string
	Replace    bool
	RestreamID *graphql.ID
}) (*bool, error) {
	doc, err := spec.Parse([]byte(args.Spec))
	if err != nil {
		return nil, newError(CodeInvalidSpec, http.StatusBadRequest, err.Error())
	}
	if args.RestreamID != nil {
		if len(doc.Restreams) != 1 {
			return nil, newError(CodeInvalidSpec, http.StatusBadRequest,
				"a single-restream import requires exactly one restream in the document")
		}
		id, err := parseID(*args.RestreamID)
		if err != nil {
			return nil, err
		}
		found, err := r.deps.Store.ApplyToRestream(id, doc.Restreams[0].Model())
		if err != nil {
			return nil, mapStateErr(err)
		}
		if !found {
			return nil, nil
		}
		return ptrBool(true), nil
	}
	if err := doc.ApplyTo(r.deps.Store, args.Replace); err != nil {
		return nil, mapStateErr(err)
	}
	return ptrBool(true), nil
}

// SetRestream creates a restream, or edits one when id is given. The
// receiving input is keyed "origin"; withBackup nests a "main"/"backup"
// failover pair under it, withHls appends an HLS endpoint.
func (r *apiResolver) SetRestream(args struct {
	Key        string
	Src        *string
	BackupSrc  *string
	Label      *string
	WithBackup bool
	WithHls    bool
	ID         *graphql.ID
}) (*bool, error) {
	key, err := state.NewRestreamKey(args.Key)
	if err != nil {
		return nil, errUnknown(err)
	}
	label, err := parseOptionalLabel(args.Label)
	if err != nil {
		return nil, errUnknown(err)
	}
	src, err := parseOptionalSrc(args.Src)
	if err != nil {
		return nil, errUnknown(err)
	}
	backupSrc, err := parseOptionalSrc(args.BackupSrc)
	if err != nil {
		return nil, errUnknown(err)
	}

	input := state.Input{
		Key:       originInputKey,
		Enabled:   true,
		Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
	}
	if args.WithHls {
		input.Endpoints = append(input.Endpoints, state.InputEndpoint{Kind: state.EndpointHLS})
	}
	switch {
	case args.WithBackup:
		main := state.Input{
			Key:       mainInputKey,
			Enabled:   true,
			Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
			Src:       remoteSrc(src),
		}
		backup := state.Input{
			Key:       backupInputKey,
			Enabled:   true,
			Endpoints: []state.InputEndpoint{{Kind: state.EndpointRTMP}},
			Src:       remoteSrc(backupSrc),
		}
		input.Src = &state.InputSrc{Failover: []state.Input{main, backup}}
	case src != nil:
		input.Src = remoteSrc(src)
	}

	restream := state.Restream{Key: key, Label: label, Input: input}

	if args.ID != nil {
		id, err := parseID(*args.ID)
		if err != nil {
			return nil, err
		}
		found, err := r.deps.Store.EditRestream(id, restream)
		if err != nil {
			return nil, mapStateErr(err)
		}
		if !found {
			return nil, nil
		}
		return ptrBool(true), nil
	}
	if err := r.deps.Store.AddRestream(restream); err != nil {
		return nil, mapStateErr(err)
	}
	return ptrBool(true), nil
}

func parseOptionalLabel(s *string) (*state.Label, error) {
	if s == nil {
		return nil, nil
	}
	label, err := state.NewLabel(*s)
	if err != nil {
		return nil, err
	}
	return &label, nil
}

func parseOptionalSrc(s *string) (*state.InputSrcURL, error) {
	if s == nil {
		return nil, nil
	}
	u, err := state.ParseInputSrcURL(*s)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func remoteSrc(u *state.InputSrcURL) *state.InputSrc {
	if u == nil {
		return nil
	}
	return &state.InputSrc{Remote: u}
}

func (r *apiResolver) RemoveRestream(args struct{ ID graphql.ID }) (*bool, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	if !r.deps.Store.RemoveRestream(id) {
		return nil, nil
	}
	return ptrBool(true), nil
}

func (r *apiResolver) EnableRestream(args struct{ ID graphql.ID }) (*bool, error) {
	return r.setRestreamEnabled(args.ID, true)
}

func (r *apiResolver) DisableRestream(args struct{ ID graphql.ID }) (*bool, error) {
	return r.setRestreamEnabled(args.ID, false)
}

func (r *apiResolver) setRestreamEnabled(id graphql.ID, enabled bool) (*bool, error) {
	parsed, err := parseID(id)
	if err != nil {
		return nil, err
	}
	changed, found := r.deps.Store.SetRestreamEnabled(parsed, enabled)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

type inputTargetArgs struct {
	RestreamID graphql.ID
	InputID    graphql.ID
}

func (r *apiResolver) EnableInput(args inputTargetArgs) (*bool, error) {
	return r.setInputEnabled(args, true)
}

func (r *apiResolver) DisableInput(args inputTargetArgs) (*bool, error) {
	return r.setInputEnabled(args, false)
}

func (r *apiResolver) setInputEnabled(args inputTargetArgs, enabled bool) (*bool, error) {
	restreamID, err := parseID(args.RestreamID)
	if err != nil {
		return nil, err
	}
	inputID, err := parseID(args.InputID)
	if err != nil {
		return nil, err
	}
	changed, found := r.deps.Store.SetInputEnabled(restreamID, inputID, enabled)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

// ChangeEndpointLabel relabels one endpoint; an empty label clears it. An
// invalid label resolves to false rather than an error so the UI can show an
// inline rejection.
func (r *apiResolver) ChangeEndpointLabel(args struct {
	RestreamID graphql.ID
	InputID    graphql.ID
	EndpointID graphql.ID
	Label      string
}) (*bool, error) {
	restreamID, err := parseID(args.RestreamID)
	if err != nil {
		return nil, err
	}
	inputID, err := parseID(args.InputID)
	if err != nil {
		return nil, err
	}
	endpointID, err := parseID(args.EndpointID)
	if err != nil {
		return nil, err
	}

	var label *state.Label
	if args.Label != "" {
		parsed, err := state.NewLabel(args.Label)
		if err != nil {
			return ptrBool(false), nil
		}
		label = &parsed
	}
	changed, found := r.deps.Store.ChangeEndpointLabel(restreamID, inputID, endpointID, label)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

// SetOutput adds an output, or edits one when id is given. Mixins matched by
// source keep their tunings; fresh voice-chat mixins start with the default
// delay. The output volume survives an edit as long as mixins remain.
func (r *apiResolver) SetOutput(args struct {
	RestreamID graphql.ID
	Dst        string
	Label      *string
	PreviewURL *string
	Mixins     []string
	ID         *graphql.ID
}) (*bool, error) {
	restreamID, err := parseID(args.RestreamID)
	if err != nil {
		return nil, err
	}
	dst, err := state.ParseOutputDstURL(args.Dst)
	if err != nil {
		return nil, errUnknown(err)
	}
	label, err := parseOptionalLabel(args.Label)
	if err != nil {
		return nil, errUnknown(err)
	}
	srcs := make([]state.MixinSrcURL, len(args.Mixins))
	for i, raw := range args.Mixins {
		src, err := state.ParseMixinSrcURL(raw)
		if err != nil {
			return nil, errUnknown(err)
		}
		srcs[i] = src
	}

	outputID := uuid.Nil
	if args.ID != nil {
		outputID, err = parseID(*args.ID)
		if err != nil {
			return nil, err
		}
	}
	var existing *state.Output
	if outputID != uuid.Nil {
		existing = lookupOutput(r.deps.Store, restreamID, outputID)
	}

	mixins := make([]state.Mixin, len(srcs))
	for i, src := range srcs {
		mixin := state.Mixin{Src: src, Volume: state.VolumeOrigin()}
		if src.IsTeamspeak() {
			mixin.Delay = tsMixinDefaultDelay
		}
		if existing != nil {
			if prev := findMixinBySrc(existing.Mixins, src); prev != nil {
				mixin.Volume = prev.Volume
				mixin.Delay = prev.Delay
				mixin.Sidechain = prev.Sidechain
			}
		}
		mixins[i] = mixin
	}
	if err := state.ValidateMixins(mixins); err != nil {
		return nil, mapStateErr(err)
	}

	output := state.Output{
		Dst:        dst,
		Label:      label,
		PreviewURL: args.PreviewURL,
		Volume:     state.VolumeOrigin(),
		Mixins:     mixins,
	}
	if existing != nil && len(mixins) > 0 {
		output.Volume = existing.Volume
	}

	found, err := r.deps.Store.SetOutput(restreamID, outputID, output)
	if err != nil {
		return nil, mapStateErr(err)
	}
	if !found {
		return nil, nil
	}
	return ptrBool(true), nil
}

func findMixinBySrc(mixins []state.Mixin, src state.MixinSrcURL) *state.Mixin {
	for i := range mixins {
		if mixins[i].Src == src {
			return &mixins[i]
		}
	}
	return nil
}

type outputTargetArgs struct {
	RestreamID graphql.ID
	OutputID   graphql.ID
}

func (r *apiResolver) RemoveOutput(args outputTargetArgs) (*bool, error) {
	restreamID, outputID, err := parseOutputTarget(args)
	if err != nil {
		return nil, err
	}
	if !r.deps.Store.RemoveOutput(restreamID, outputID) {
		return nil, nil
	}
	return ptrBool(true), nil
}

func (r *apiResolver) EnableOutput(args outputTargetArgs) (*bool, error) {
	return setOutputEnabled(r.deps, args, true)
}

func (r *apiResolver) DisableOutput(args outputTargetArgs) (*bool, error) {
	return setOutputEnabled(r.deps, args, false)
}

func setOutputEnabled(deps Deps, args outputTargetArgs, enabled bool) (*bool, error) {
	restreamID, outputID, err := parseOutputTarget(args)
	if err != nil {
		return nil, err
	}
	changed, found := deps.Store.SetOutputEnabled(restreamID, outputID, enabled)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

func parseOutputTarget(args outputTargetArgs) (restreamID, outputID uuid.UUID, err error) {
	restreamID, err = parseID(args.RestreamID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	outputID, err = parseID(args.OutputID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return restreamID, outputID, nil
}

func (r *apiResolver) EnableAllOutputs(args struct{ RestreamID graphql.ID }) (*bool, error) {
	return r.setAllOutputsEnabled(args.RestreamID, true)
}

func (r *apiResolver) DisableAllOutputs(args struct{ RestreamID graphql.ID }) (*bool, error) {
	return r.setAllOutputsEnabled(args.RestreamID, false)
}

func (r *apiResolver) setAllOutputsEnabled(id graphql.ID, enabled bool) (*bool, error) {
	restreamID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	changed, found := r.deps.Store.SetAllOutputsEnabled(restreamID, enabled)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

func (r *apiResolver) EnablesAllOutputsOfRestreams() (*bool, error) {
	changed := r.deps.Store.SetAllOutputsOfRestreamsEnabled(true)
	return &changed, nil
}

func (r *apiResolver) DisableAllOutputsOfRestreams() (*bool, error) {
	changed := r.deps.Store.SetAllOutputsOfRestreamsEnabled(false)
	return &changed, nil
}

type tuneVolumeArgs struct {
	RestreamID graphql.ID
	OutputID   graphql.ID
	MixinID    *graphql.ID
	Level      int32
	Muted      bool
}

func (r *apiResolver) TuneVolume(args tuneVolumeArgs) (*bool, error) {
	return tuneVolume(r.deps, args)
}

func tuneVolume(deps Deps, args tuneVolumeArgs) (*bool, error) {
	restreamID, err := parseID(args.RestreamID)
	if err != nil {
		return nil, err
	}
	outputID, err := parseID(args.OutputID)
	if err != nil {
		return nil, err
	}
	mixinID := uuid.Nil
	if args.MixinID != nil {
		mixinID, err = parseID(*args.MixinID)
		if err != nil {
			return nil, err
		}
	}
	level, err := state.NewVolumeLevel(args.Level)
	if err != nil {
		return nil, errUnknown(err)
	}
	changed, found := deps.Store.TuneVolume(restreamID, outputID, mixinID,
		state.Volume{Level: level, Muted: args.Muted})
	if !found {
		return nil, nil
	}
	return &changed, nil
}

type tuneDelayArgs struct {
	RestreamID graphql.ID
	OutputID   graphql.ID
	MixinID    graphql.ID
	Delay      int32
}

func (r *apiResolver) TuneDelay(args tuneDelayArgs) (*bool, error) {
	return tuneDelay(r.deps, args)
}

func tuneDelay(deps Deps, args tuneDelayArgs) (*bool, error) {
	restreamID, err := parseID(args.RestreamID)
	if err != nil {
		return nil, err
	}
	outputID, err := parseID(args.OutputID)
	if err != nil {
		return nil, err
	}
	mixinID, err := parseID(args.MixinID)
	if err != nil {
		return nil, err
	}
	delay, err := state.NewDelayMillis(int64(args.Delay))
	if err != nil {
		return nil, errUnknown(err)
	}
	changed, found := deps.Store.TuneDelay(restreamID, outputID, mixinID, delay)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

func (r *apiResolver) TuneSidechain(args struct {
	RestreamID graphql.ID
	OutputID   graphql.ID
	MixinID    graphql.ID
	Sidechain  bool
}) (*bool, error) {
	restreamID, err := parseID(args.RestreamID)
	if err != nil {
		return nil, err
	}
	outputID, err := parseID(args.OutputID)
	if err != nil {
		return nil, err
	}
	mixinID, err := parseID(args.MixinID)
	if err != nil {
		return nil, err
	}
	changed, found := r.deps.Store.TuneSidechain(restreamID, outputID, mixinID, args.Sidechain)
	if !found {
		return nil, nil
	}
	return &changed, nil
}

func (r *apiResolver) RemoveDvrFile(args struct{ Path string }) (bool, error) {
	if err := r.deps.Recordings.RemoveFile(args.Path); err != nil {
		if errors.Is(err, dvr.ErrInvalidPath) {
			return false, newError(CodeInvalidDvrFilePath, http.StatusBadRequest, err.Error())
		}
		return false, errUnknown(err)
	}
	return true, nil
}

// SetPassword replaces one of the two access passwords. Replacing an
// existing one needs the old password; clearing works the same way. Setting
// nothing on an empty slot resolves to false.
func (r *apiResolver) SetPassword(args struct {
	New  *string
	Old  *string
	Kind *state.PasswordKind
}) (bool, error) {
	kind := state.PasswordMain
	if args.Kind != nil {
		kind = *args.Kind
	}

	var (
		result bool
		ferr   error
	)
	r.deps.Store.Settings.Update(func(s *state.Settings) {
		slot := s.Hash(kind)
		if *slot != nil {
			if args.Old == nil {
				ferr = newError(CodeNoOldPassword, http.StatusForbidden,
					"the old password is required to replace an existing one")
				return
			}
			ok, err := auth.VerifyPassword(*args.Old, **slot)
			if err != nil || !ok {
				ferr = newError(CodeWrongOldPassword, http.StatusForbidden,
					"the old password does not match")
				return
			}
		} else if args.New == nil {
			return
		}

		if args.New == nil {
			*slot = nil
		} else {
			hash, err := auth.HashPassword(*args.New)
			if err != nil {
				ferr = errUnknown(err)
				return
			}
			*slot = &hash
		}
		result = true
	})
	if ferr != nil {
		return false, ferr
	}
	return result, nil
}

// SetSettings overwrites the server title and the confirmation toggles.
func (r *apiResolver) SetSettings(args struct {
	Title              *string
	DeleteConfirmation *bool
	EnableConfirmation *bool
}) (bool, error) {
	title := args.Title
	if title != nil {
		normalized := norm.NFC.String(*title)
		if utf8.RuneCountInString(normalized) > state.TitleMaxLen {
			return false, newError(CodeWrongTitleLength, http.StatusBadRequest,
				"the title must not exceed 70 characters")
		}
		title = &normalized
	}
	r.deps.Store.Settings.Update(func(s *state.Settings) {
		s.ApplySpec(title, args.DeleteConfirmation, args.EnableConfirmation)
	})
	return true, nil
}
