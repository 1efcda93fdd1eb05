package driver

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xlab/treeprint"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daviszhen/aggr/pkg/aggregation"
	"github.com/daviszhen/aggr/pkg/chunk"
	"github.com/daviszhen/aggr/pkg/common"
	"github.com/daviszhen/aggr/pkg/exchange"
	"github.com/daviszhen/aggr/pkg/util"
)

// FaultDispatch is injected before each raw page is handed to a partition.
const FaultDispatch = "driver.dispatch"

// AggregateSpec names one aggregate over one raw channel.
type AggregateSpec struct {
	Name    string
	Typ     common.ElementType
	Channel int
}

func (spec AggregateSpec) String() string {
	return fmt.Sprintf("%s(#%d %s)", spec.Name, spec.Channel, spec.Typ)
}

// Pipeline runs aggregates in two stages. The leaf stage has one task per
// partition, each reducing the pages dealt to it round-robin into partial
// state. Partials cross an exchange and the merge stage combines them in
// arrival order into one row, one column per aggregate.
type Pipeline struct {
	_specs     []AggregateSpec
	_factories []*aggregation.AggregatorFunctionFactory
	_cfg       *util.Config
	_codec     *exchange.Codec
	_metrics   *Metrics
}

func NewPipeline(specs []AggregateSpec, cfg *util.Config, metrics *Metrics) (*Pipeline, error) {
	if len(specs) == 0 {
		return nil, errors.New("no aggregate to run")
	}
	if cfg == nil {
		cfg = util.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factories := make([]*aggregation.AggregatorFunctionFactory, len(specs))
	for i, spec := range specs {
		if spec.Channel < 0 {
			return nil, fmt.Errorf("aggregate %s: negative channel", spec)
		}
		f, err := aggregation.LookupFactory(spec.Name, spec.Typ)
		if err != nil {
			return nil, err
		}
		factories[i] = f
	}
	compression, err := exchange.ParseCompression(cfg.Pipeline.Compression)
	if err != nil {
		return nil, err
	}
	codec, err := exchange.NewCodec(compression)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}
	return &Pipeline{
		_specs:     specs,
		_factories: factories,
		_cfg:       cfg,
		_codec:     codec,
		_metrics:   metrics,
	}, nil
}

func (p *Pipeline) newOperator(mode aggregation.AggregatorMode) *aggregation.AggregationOperator {
	aggrs := make([]*aggregation.Aggregator, len(p._specs))
	for i, spec := range p._specs {
		channel := i
		if mode.IsInputRaw() {
			channel = spec.Channel
		}
		aggrs[i] = aggregation.NewAggregator(p._factories[i], mode, channel)
	}
	return aggregation.NewAggregationOperator(aggrs...)
}

// recoverTask turns a panic of a stage task into its error.
func recoverTask(err *error) {
	if r := recover(); r != nil {
		*err = util.ConvertPanicError(r)
	}
}

// Run drains src through both stages and returns the one-row result page.
// It stops early with the first task error or when ctx is done.
func (p *Pipeline) Run(ctx context.Context, src PageSource) (*chunk.Page, error) {
	partitions := p._cfg.Pipeline.Partitions
	eg, egCtx := errgroup.WithContext(ctx)

	inputs := make([]chan *chunk.Page, partitions)
	for i := range inputs {
		inputs[i] = make(chan *chunk.Page, p._cfg.Pipeline.QueueDepth)
	}
	frames := make(chan []byte, partitions)

	eg.Go(func() (err error) {
		defer recoverTask(&err)
		defer func() {
			for _, in := range inputs {
				close(in)
			}
		}()
		return p.dispatch(egCtx, src, inputs)
	})

	for i := 0; i < partitions; i++ {
		in := inputs[i]
		eg.Go(func() (err error) {
			defer recoverTask(&err)
			return p.runLeaf(egCtx, i, in, frames)
		})
	}

	var result *chunk.Page
	eg.Go(func() (err error) {
		defer recoverTask(&err)
		result, err = p.runMerge(egCtx, partitions, frames)
		return err
	})

	if err := eg.Wait(); err != nil {
		util.Error("pipeline failed", zap.Error(err))
		return nil, err
	}
	if p._cfg.Debug.PrintResult {
		result.Print2("result")
	}
	return result, nil
}

func (p *Pipeline) dispatch(ctx context.Context, src PageSource, inputs []chan *chunk.Page) error {
	for i := 0; ; i++ {
		page, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			util.Debug("source drained", zap.String("source", src.String()), zap.Int("pages", i))
			return nil
		}
		if err != nil {
			return err
		}
		if err = util.Inject(util.FAULTS_SCOPE_DRIVER, FaultDispatch); err != nil {
			return err
		}
		select {
		case inputs[i%len(inputs)] <- page:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) runLeaf(ctx context.Context, partition int, in <-chan *chunk.Page, frames chan<- []byte) error {
	start := time.Now()
	op := p.newOperator(aggregation.AM_INITIAL)
	pageCnt := 0
	for op.NeedsInput() {
		select {
		case page, ok := <-in:
			if !ok {
				op.Finish()
				break
			}
			op.AddInput(page)
			pageCnt++
			p._metrics.Pages.WithLabelValues(stageLeaf).Inc()
			p._metrics.Rows.WithLabelValues(stageLeaf).Add(float64(page.PositionCount()))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	frame, err := p._codec.EncodePage(op.GetOutput())
	if err != nil {
		return err
	}
	p._metrics.ExchangeBytes.Add(float64(len(frame)))
	select {
	case frames <- frame:
	case <-ctx.Done():
		return ctx.Err()
	}
	p._metrics.StageDuration.WithLabelValues(stageLeaf).Observe(time.Since(start).Seconds())
	util.Debug("leaf done",
		zap.Int("partition", partition),
		zap.Int("pages", pageCnt),
		zap.Int("frameBytes", len(frame)))
	return nil
}

func (p *Pipeline) runMerge(ctx context.Context, partitions int, frames <-chan []byte) (*chunk.Page, error) {
	start := time.Now()
	op := p.newOperator(aggregation.AM_FINAL)
	for i := 0; i < partitions; i++ {
		select {
		case frame := <-frames:
			page, err := exchange.DecodePage(frame)
			if err != nil {
				return nil, err
			}
			op.AddInput(page)
			p._metrics.MergedPartials.Inc()
			p._metrics.Pages.WithLabelValues(stageMerge).Inc()
			p._metrics.Rows.WithLabelValues(stageMerge).Add(float64(page.PositionCount()))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	op.Finish()
	p._metrics.StageDuration.WithLabelValues(stageMerge).Observe(time.Since(start).Seconds())
	return op.GetOutput(), nil
}

// Explain renders the stage topology.
func (p *Pipeline) Explain(src PageSource) string {
	tree := treeprint.NewWithRoot("Pipeline:")
	merge := tree.AddBranch("Merge:")
	merge.AddMetaNode("mode", aggregation.AM_FINAL.String())
	p.printAggregates(merge, aggregation.AM_FINAL)
	ex := merge.AddBranch("Exchange:")
	ex.AddMetaNode("compression", p._codec.Compression().String())
	leaf := ex.AddBranch("Leaf:")
	leaf.AddMetaNode("mode", aggregation.AM_INITIAL.String())
	leaf.AddMetaNode("partitions", fmt.Sprintf("%d", p._cfg.Pipeline.Partitions))
	p.printAggregates(leaf, aggregation.AM_INITIAL)
	scan := leaf.AddBranch("Source:")
	if src != nil {
		scan.AddNode(src.String())
	}
	return tree.String()
}

func (p *Pipeline) printAggregates(tree treeprint.Tree, mode aggregation.AggregatorMode) {
	for i, spec := range p._specs {
		channel := i
		if mode.IsInputRaw() {
			channel = spec.Channel
		}
		tree.AddMetaNode(fmt.Sprintf("aggr %d", i),
			fmt.Sprintf("%s channel=%d", p._factories[i], channel))
	}
}
