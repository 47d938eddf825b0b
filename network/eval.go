// Copyright 2022 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package network

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/mfnet"
	"github.com/grailbio/mfnet/errors"
	"github.com/grailbio/mfnet/fn"
	"github.com/grailbio/mfnet/log"
	"github.com/grailbio/mfnet/metrics"
	"github.com/grailbio/mfnet/trace"
	"github.com/willf/bitset"
)

// Config configures an Evaluator. The zero Config is valid.
type Config struct {
	// Name is the name of the evaluator's signature. It defaults to
	// "network".
	Name string
	// Log receives a debug transcript of each call: one line per
	// function invocation and a storage summary per call. A nil Log
	// disables logging.
	Log *log.Logger
	// DeclarationOrder makes the walk compute missing inputs in the
	// order in which they are declared rather than deepest origin
	// first. Results are the same either way; the order only affects
	// how long intermediate buffers are held.
	DeclarationOrder bool
}

// Evaluator computes values of a network. The caller supplies the
// values of a set of dummy output sockets and requests the values of a
// set of dummy input sockets; only the function nodes required to
// compute the requested values are invoked.
//
// An Evaluator implements fn.Function: its signature has a single or
// vector input parameter for each supplied socket followed by an
// output parameter for each requested socket. Evaluators may thus be
// used as functions of other networks.
//
// An Evaluator may be called concurrently: each call keeps its values
// in its own Storage.
type Evaluator struct {
	net     *Network
	inputs  []*OutputSocket
	outputs []*InputSocket
	sig     *fn.Signature
	cfg     Config
	log     *log.Logger
	profile *Profile

	mu    sync.Mutex
	stats StorageStats
}

// NewEvaluator returns an evaluator that computes the values of the
// dummy input sockets outputs from the values supplied for the dummy
// output sockets inputs. All sockets must belong to the same network,
// and every dummy output socket needed to compute outputs must be
// among inputs.
func NewEvaluator(inputs []*OutputSocket, outputs []*InputSocket, cfg Config) (*Evaluator, error) {
	if cfg.Name == "" {
		cfg.Name = "network"
	}
	var net *Network
	for _, s := range inputs {
		if net == nil {
			net = s.node.net
		}
		switch {
		case s.node.net != net:
			return nil, errors.E("evaluator", s, errors.Invalid, errors.New("sockets belong to different networks"))
		case !s.node.IsDummy():
			return nil, errors.E("evaluator", s, errors.Invalid, errors.New("supplied socket is not a dummy output"))
		}
	}
	for _, s := range outputs {
		if net == nil {
			net = s.node.net
		}
		switch {
		case s.node.net != net:
			return nil, errors.E("evaluator", s, errors.Invalid, errors.New("sockets belong to different networks"))
		case !s.node.IsDummy():
			return nil, errors.E("evaluator", s, errors.Invalid, errors.New("requested socket is not a dummy input"))
		}
	}
	if net == nil {
		return nil, errors.E("evaluator", errors.Invalid, errors.New("no sockets supplied or requested"))
	}
	e := &Evaluator{
		net:     net,
		inputs:  inputs,
		outputs: outputs,
		cfg:     cfg,
		log:     cfg.Log.Tee(nil, cfg.Name+": "),
		profile: newProfile(),
	}
	if err := e.checkSupplied(); err != nil {
		return nil, err
	}
	b := fn.NewSignature(cfg.Name)
	for _, s := range inputs {
		if s.typ.Category == mfnet.Vector {
			b.VectorInput(s.name, s.typ.Type)
		} else {
			b.SingleInput(s.name, s.typ.Type)
		}
	}
	for _, s := range outputs {
		if s.typ.Category == mfnet.Vector {
			b.VectorOutput(s.name, s.typ.Type)
		} else {
			b.SingleOutput(s.name, s.typ.Type)
		}
	}
	e.sig = b.Build()
	return e, nil
}

// checkSupplied makes sure that every dummy output socket that the
// requested values depend on is supplied by the caller, and that no
// socket is supplied or requested twice.
func (e *Evaluator) checkSupplied() error {
	supplied := bitset.New(uint(e.net.NumSockets()))
	for _, s := range e.inputs {
		if supplied.Test(uint(s.id)) {
			return errors.E("evaluator", s, errors.Invalid, errors.New("socket supplied more than once"))
		}
		supplied.Set(uint(s.id))
	}
	check := func(in *InputSocket) error {
		if origin := in.origin; origin.node.IsDummy() && !supplied.Test(uint(origin.id)) {
			return errors.E("evaluator", origin, errors.Invalid, errors.New("socket is required but not supplied"))
		}
		return nil
	}
	requested := bitset.New(uint(e.net.NumSockets()))
	for _, s := range e.outputs {
		if requested.Test(uint(s.id)) {
			return errors.E("evaluator", s, errors.Invalid, errors.New("socket requested more than once"))
		}
		requested.Set(uint(s.id))
		if err := check(s); err != nil {
			return err
		}
	}
	deps := e.net.FindFunctionDependencies(e.outputs)
	for _, node := range deps {
		for _, in := range node.inputs {
			if err := check(in); err != nil {
				return err
			}
		}
	}
	e.log.Debugf("%d of %d function nodes required", len(deps), len(e.net.functions))
	return nil
}

// Name implements fn.Function.
func (e *Evaluator) Name() string { return e.sig.Name }

// Signature implements fn.Function.
func (e *Evaluator) Signature() *fn.Signature { return e.sig }

// Network returns the evaluated network.
func (e *Evaluator) Network() *Network { return e.net }

// Profile returns the evaluator's function timing profile.
func (e *Evaluator) Profile() *Profile { return e.profile }

// LastStats returns the storage statistics of the latest completed
// call.
func (e *Evaluator) LastStats() StorageStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Call computes the requested values at the indices in mask and
// writes them into the output parameters. Input parameters are only
// read. Call returns the first error returned by a function body, in
// which case the output parameters are left in an unspecified state.
func (e *Evaluator) Call(ctx context.Context, mask mfnet.Mask, params *fn.Params) error {
	if params.Signature() != e.sig {
		return errors.E("call", e.sig.Name, errors.Invalid,
			errors.Errorf("parameters bound for %s", params.Signature().Name))
	}
	if mask.Len() == 0 {
		return nil
	}
	stats, err := e.call(ctx, mask, params)
	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()
	return err
}

func (e *Evaluator) call(ctx context.Context, mask mfnet.Mask, params *fn.Params) (StorageStats, error) {
	var (
		begin   = time.Now()
		storage = NewStorage(mask, e.net.NumSockets())
	)
	ctx, done := trace.Start(ctx, trace.Call, e.net.Digest(), e.sig.Name)
	defer done()
	trace.Note(ctx, "indices", mask.Len())

	for i, s := range e.inputs {
		if s.typ.Category == mfnet.Vector {
			storage.AddVectorFromCaller(s, params.VectorInput(i))
		} else {
			storage.AddSingleFromCaller(s, params.SingleInput(i))
		}
	}
	err := e.walk(ctx, storage)
	if err == nil {
		for i, s := range e.outputs {
			e.copyOutput(storage, s, params, len(e.inputs)+i)
		}
	}
	storage.Close()
	stats := storage.Stats()
	e.record(ctx, mask, stats, time.Since(begin), err)
	return stats, err
}

func (e *Evaluator) copyOutput(storage *Storage, s *InputSocket, params *fn.Params, i int) {
	mask := storage.Mask()
	if s.typ.Category == mfnet.Vector {
		params.VectorOutput(i).ExtendMultipleCopy(mask, storage.VectorInput(s))
	} else {
		storage.SingleInput(s).MaterializeTo(mask, params.SingleOutput(i))
	}
	storage.FinishInput(s)
}

// walk computes the requested sockets. It works on a stack of sockets
// seeded with the requested sockets. An input socket on top of the
// stack is popped once its origin has been computed, otherwise the
// origin is pushed. An output socket on top of the stack belongs to a
// function node that has not been invoked: the node is invoked when
// all of its inputs are available, otherwise its missing inputs are
// pushed.
func (e *Evaluator) walk(ctx context.Context, storage *Storage) error {
	var (
		stack   socketStack
		invoked = bitset.New(uint(len(e.net.nodes)))
		missing []*InputSocket
	)
	stack.PushInputs(e.outputs)
	for stack.Len() > 0 {
		switch s := stack.Peek().(type) {
		case *InputSocket:
			if storage.IsComputed(s) {
				stack.Pop()
			} else {
				stack.Push(s.origin)
			}
		case *OutputSocket:
			node := s.node
			if node.IsDummy() {
				errors.Panic("evaluate", s, errors.New("dummy output was not supplied"))
			}
			if invoked.Test(uint(node.id)) {
				errors.Panic("evaluate", node, errors.New("node already invoked"))
			}
			missing = missing[:0]
			for _, in := range node.inputs {
				if !storage.IsComputed(in) {
					missing = append(missing, in)
				}
			}
			if len(missing) > 0 {
				e.order(missing)
				stack.PushInputs(missing)
				continue
			}
			invoked.Set(uint(node.id))
			if err := e.invoke(ctx, storage, node); err != nil {
				return err
			}
			stack.Pop()
		}
	}
	return nil
}

// order arranges missing inputs so that, once pushed, the input whose
// origin node is deepest is on top of the stack and is computed
// first.
func (e *Evaluator) order(missing []*InputSocket) {
	if e.cfg.DeclarationOrder || len(missing) < 2 {
		return
	}
	depths := e.net.depths
	sort.SliceStable(missing, func(i, j int) bool {
		return depths[missing[i].origin.node.id] < depths[missing[j].origin.node.id]
	})
}

// invoke calls the function of node with parameters bound from
// storage, and then releases the node's inputs.
func (e *Evaluator) invoke(ctx context.Context, storage *Storage, node *Node) error {
	var (
		f    = node.fn
		sig  = f.Signature()
		mask = storage.Mask()
		b    = fn.NewParamsBuilder(sig, mask.MinArraySize())
	)
	for i, p := range sig.Params {
		in, out := node.paramInputs[i], node.paramOutputs[i]
		switch p.Kind {
		case mfnet.SingleInput:
			b.AddSingleInput(storage.SingleInput(in))
		case mfnet.VectorInput:
			b.AddVectorInput(storage.VectorInput(in))
		case mfnet.SingleOutput:
			b.AddSingleOutput(storage.AllocateSingleOutput(out))
		case mfnet.VectorOutput:
			b.AddVectorOutput(storage.AllocateVectorOutput(out))
		case mfnet.MutableSingle:
			b.AddMutableSingle(storage.MutableSingle(in, out))
		case mfnet.MutableVector:
			b.AddMutableVector(storage.MutableVector(in, out))
		}
	}
	params := b.Build()

	fctx, done := trace.Start(ctx, trace.Function, sig.Digest(), node.String())
	begin := time.Now()
	err := f.Call(fctx, mask, params)
	elapsed := time.Since(begin)
	done()

	for _, in := range node.inputs {
		storage.FinishInput(in)
	}
	for _, out := range node.outputs {
		storage.ReleaseUnused(out)
	}
	e.profile.add(f.Name(), elapsed)
	metrics.GetFunctionsInvokedCountCounter(ctx, sig.Family()).Inc()
	metrics.GetFunctionDurationSecondsHistogram(ctx, sig.Family()).Observe(elapsed.Seconds())
	metrics.GetBuffersLiveGauge(ctx).Set(float64(storage.Live()))
	if e.log.At(log.DebugLevel) {
		e.log.Debugf("invoke %s over %d indices: %s, %d buffers live", node, mask.Len(), elapsed, storage.Live())
	}
	if err != nil {
		kind := errors.Eval
		if ctx.Err() != nil {
			kind = errors.Canceled
		}
		return errors.E("evaluate", node.String(), kind, err)
	}
	return nil
}

func (e *Evaluator) record(ctx context.Context, mask mfnet.Mask, stats StorageStats, elapsed time.Duration, err error) {
	if err != nil {
		metrics.GetCallsFailedCountCounter(ctx).Inc()
		e.log.Errorf("call over %d indices failed: %v", mask.Len(), err)
	} else {
		metrics.GetCallsCompletedCountCounter(ctx).Inc()
		metrics.GetCallIndicesCountCounter(ctx).Add(float64(mask.Len()))
		metrics.GetCallDurationSecondsHistogram(ctx).Observe(elapsed.Seconds())
	}
	metrics.GetBuffersAllocatedCountCounter(ctx).Add(float64(stats.Allocs))
	metrics.GetBuffersMovedCountCounter(ctx).Add(float64(stats.Moves))
	metrics.GetBuffersCopiedCountCounter(ctx).Add(float64(stats.Copies))
	metrics.GetBuffersFreedCountCounter(ctx).Add(float64(stats.Frees))
	metrics.GetBuffersResidualCountCounter(ctx).Add(float64(stats.Residual))
	metrics.GetBuffersLiveGauge(ctx).Set(0)
	e.log.Debugf("call over %d indices: %s in %s", mask.Len(), stats, elapsed)
}
