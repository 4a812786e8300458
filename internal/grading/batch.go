package grading

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/UCL-RITS/Submitty/pkg/types"
)

// Batch grades many test cases, optionally in parallel. Outcomes are always
// returned in input order.
type Batch struct {
	grader      *Grader
	parallelism int
}

// NewBatch creates a batch grader. parallelism <= 1 grades sequentially.
func NewBatch(grader *Grader, parallelism int) *Batch {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Batch{grader: grader, parallelism: parallelism}
}

type gradeParam struct {
	idx      int
	c        *types.GradeCase
	grader   *Grader
	outcomes []Outcome
	errs     []error
	wg       *sync.WaitGroup
}

func (p *gradeParam) reset() {
	p.idx = 0
	p.c = nil
	p.grader = nil
	p.outcomes = nil
	p.errs = nil
	p.wg = nil
}

var gradeParamPool = &sync.Pool{
	New: func() any { return new(gradeParam) },
}

func newGradePool(size int) (*ants.PoolWithFunc, error) {
	pool, err := ants.NewPoolWithFunc(size, func(args any) {
		param, ok := args.(*gradeParam)
		if !ok {
			panic("grade pool args type error")
		}
		wg := param.wg
		defer func() {
			wg.Done()
			param.reset()
			gradeParamPool.Put(param)
		}()
		param.outcomes[param.idx], param.errs[param.idx] = param.grader.Grade(*param.c)
	})
	if err != nil {
		return nil, fmt.Errorf("create grade pool: %w", err)
	}
	return pool, nil
}

// GradeAll grades every case. Each worker writes into the slot of its input
// index, so concurrency never reorders the outcomes. When ctx is canceled no
// further cases are started and ctx.Err() is returned.
func (b *Batch) GradeAll(ctx context.Context, cases []types.GradeCase) ([]Outcome, error) {
	outcomes := make([]Outcome, len(cases))
	errs := make([]error, len(cases))

	if b.parallelism == 1 || len(cases) < 2 {
		for i := range cases {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i], errs[i] = b.grader.Grade(cases[i])
		}
		return outcomes, errors.Join(errs...)
	}

	pool, err := newGradePool(min(b.parallelism, len(cases)))
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range cases {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		param := gradeParamPool.Get().(*gradeParam)
		param.idx = i
		param.c = &cases[i]
		param.grader = b.grader
		param.outcomes = outcomes
		param.errs = errs
		param.wg = &wg

		wg.Add(1)
		if err := pool.Invoke(param); err != nil {
			wg.Done()
			param.reset()
			gradeParamPool.Put(param)
			wg.Wait()
			return nil, fmt.Errorf("submit case %d: %w", i, err)
		}
	}
	wg.Wait()
	return outcomes, errors.Join(errs...)
}
