package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/zeebo/blake3"

	"spanproj/internal/diag"
	"spanproj/pkg/contract"
)

// - 前置校验：三路输入句数必须一致，否则整体失败、不写任何内容。
// - 单点并发：仅此层管理并发；原子组件均为同步、无内部并发。
// - 一批深度的重叠：提交第 k 批 → 写出第 k-1 批 → 读取第 k+1 批 → 等待第 k 批。
// - 顺序：分片按 ShardIndex 拼回，批次按流顺序写出；首错即终止，已写出内容保留。

// DefaultBatchSize 为默认批大小（句对数）。
const DefaultBatchSize = 10000

// Components 聚合运行所需的原子组件。
type Components struct {
	Reader    contract.Reader
	Source    contract.Splitter
	Target    contract.TargetSplitter
	Align     contract.Decoder
	Batcher   contract.Batcher
	Projector contract.Projector
	Assembler contract.Assembler
	Writer    contract.Writer
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	BatchSize   int
	Concurrency int
	// Status 为可选终端提示器。
	Status *diag.Terminal
}

// Job: 一组（源、目标、对齐）输入与其输出工件。
type Job struct {
	Name      string
	Source    string
	Target    string
	Alignment string
	Output    contract.ArtifactID
}

// Result: 单个作业的产出摘要。
type Result struct {
	Job       Job
	Sentences int64
	Batches   int
	Empty     int64 // 源句为空，输出全 O
	Skipped   int64 // 目标句为空，无输出
	Bytes     int64
	Digest    string // 输出内容 BLAKE3（hex）
	Duration  time.Duration
}

// Run 依次执行全部作业；worker 池在作业间复用。
// 返回已完成作业的结果；出错时同时返回错误（失败作业不计入结果）。
func Run(ctx context.Context, comp Components, set Settings, jobs []Job, logger *diag.Logger) ([]Result, error) {
	if err := sanity(comp); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	if set.BatchSize <= 0 {
		set.BatchSize = DefaultBatchSize
	}
	if set.Concurrency < 1 {
		set.Concurrency = 1
	}
	p := newPool(set.Concurrency)
	defer p.close()

	results := make([]Result, 0, len(jobs))
	for _, job := range jobs {
		res, err := runJob(ctx, comp, set, p, job, logger)
		if err != nil {
			return results, fmt.Errorf("job %s: %w", jobName(job), err)
		}
		results = append(results, res)
	}
	return results, nil
}

func runJob(ctx context.Context, comp Components, set Settings, p *pool, job Job, logger *diag.Logger) (res Result, err error) {
	log := logger.Job(string(job.Output))
	start := time.Now()
	res.Job = job

	ct := log.Start("counter", "count")
	total, err := countAll(ctx, comp, job)
	if err != nil {
		log.Fail("counter", "count failed", err, ct.Since())
		return res, err
	}
	ct.Finish("count", total)

	planned := int((total + int64(set.BatchSize) - 1) / int64(set.BatchSize))
	set.Status.JobStart(jobName(job), total, planned)
	defer func() {
		res.Duration = time.Since(start)
		set.Status.JobFinish(err == nil, res.Duration)
	}()

	in, err := openTriple(ctx, comp, job)
	if err != nil {
		log.Fail("reader", "open failed", err, nil)
		return res, err
	}
	defer in.Close()

	// 单次 Writer.Write，经管道流式落盘；同时计算摘要与字节数
	pr, pw := io.Pipe()
	hasher := blake3.New()
	counter := &countWriter{}
	wdone := make(chan error, 1)
	wt := log.Start("writer", "write")
	go func() {
		werr := comp.Writer.Write(ctx, job.Output, io.TeeReader(pr, io.MultiWriter(hasher, counter)))
		// Writer 提前返回时让写端失败而不是阻塞
		if werr != nil {
			_ = pr.CloseWithError(werr)
		} else {
			_ = pr.Close()
		}
		wdone <- werr
	}()

	flushErr := driveBatches(ctx, comp, set, p, in, pw, &res, log)
	if flushErr != nil {
		_ = pw.CloseWithError(flushErr)
	} else {
		_ = pw.Close()
	}
	werr := <-wdone
	// 驱动循环的错误已在源头记录；写端随之失败时不再重复归因于 writer
	if flushErr != nil {
		return res, flushErr
	}
	if werr != nil {
		log.Fail("writer", "write failed", werr, wt.Since())
		return res, fmt.Errorf("writer write: %w", werr)
	}
	wt.Finish("write", counter.n)

	res.Sentences = total
	res.Bytes = counter.n
	res.Digest = hex.EncodeToString(hasher.Sum(nil))
	return res, nil
}

// driveBatches 为单线程驱动循环：
// (1) 异步提交当前批 (2) 写出上一批结果 (3) 读取下一批 (4) 等待当前批。
func driveBatches(ctx context.Context, comp Components, set Settings, p *pool, in *triple, w io.Writer, res *Result, log diag.Scope) error {
	cur, err := in.read(ctx, set.BatchSize)
	if err != nil {
		log.Batch(0).Fail("reader", "read failed", err, nil)
		return err
	}
	var prev []contract.Projection
	var batchIdx int64
	for len(cur) > 0 {
		blog := log.Batch(batchIdx)
		pend, err := submit(ctx, comp, set, p, contract.Batch{BatchIndex: batchIdx, Items: cur}, blog)
		if err != nil {
			blog.Fail("batcher", "make failed", err, nil)
			return err
		}
		var werr, rerr error
		if prev != nil {
			werr = flush(ctx, comp, w, prev, log.Batch(batchIdx-1))
		}
		var next []contract.Item
		if werr == nil {
			next, rerr = in.read(ctx, set.BatchSize)
		}
		out, perr := pend.wait()
		switch {
		case werr != nil:
			return werr
		case rerr != nil:
			log.Batch(batchIdx+1).Fail("reader", "read failed", rerr, nil)
			return rerr
		case perr != nil:
			blog.Fail("projector", "project failed", perr, nil)
			return perr
		}
		for k, o := range out {
			switch {
			case o.Skip:
				res.Skipped++
			case len(cur[k].Source.Words) == 0:
				res.Empty++
			}
		}
		batchIdx++
		res.Batches = int(batchIdx)
		set.Status.BatchProgress(int(batchIdx))
		diag.IncOp("pipeline", "batch", "success")
		prev, cur = out, next
	}
	if prev != nil {
		return flush(ctx, comp, w, prev, log.Batch(batchIdx-1))
	}
	return nil
}

// submit 切分当前批并将各分片投递到池中；不等待结果。
func submit(ctx context.Context, comp Components, set Settings, p *pool, b contract.Batch, log diag.Scope) (*pending, error) {
	shards, err := comp.Batcher.Make(ctx, b.Items, set.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("batcher make: %w", err)
	}
	pend := &pending{batch: b, outs: make([][]contract.Projection, len(shards)), errs: make([]error, len(shards))}
	pend.wg.Add(len(shards))
	for i, sh := range shards {
		i, sh := i, sh
		p.submit(func() {
			defer pend.wg.Done()
			pend.outs[i], pend.errs[i] = projectShard(comp.Projector, sh, log)
		})
	}
	return pend, nil
}

// projectShard 在 worker 中运行：逐句投影，空句就地恢复并告警。
func projectShard(pj contract.Projector, sh contract.Shard, log diag.Scope) ([]contract.Projection, error) {
	out := make([]contract.Projection, len(sh.Items))
	var projected, empty, skipped int
	for k, it := range sh.Items {
		p := contract.Projection{Index: it.Index, Words: it.Target}
		switch {
		case len(it.Target) == 0:
			p.Skip = true
			skipped++
			log.Warn("projector", "empty target sentence skipped", map[string]string{
				"index":        strconv.FormatInt(it.Index, 10),
				"source_words": strconv.Itoa(len(it.Source.Words)),
			})
		default:
			tags, err := pj.Project(it.Source, it.Target, it.Align)
			if err != nil {
				return nil, fmt.Errorf("sentence %d: %w", it.Index, err)
			}
			p.Tags = tags
			if len(it.Source.Words) == 0 {
				empty++
				log.Warn("projector", "empty source sentence, all tags O", map[string]string{
					"index":        strconv.FormatInt(it.Index, 10),
					"target_words": strconv.Itoa(len(it.Target)),
				})
			} else {
				projected++
			}
		}
		out[k] = p
	}
	diag.AddSentences("projected", projected)
	diag.AddSentences("empty", empty)
	diag.AddSentences("skipped", skipped)
	return out, nil
}

// flush 装配一批并写入管道。
func flush(ctx context.Context, comp Components, w io.Writer, out []contract.Projection, log diag.Scope) error {
	at := log.Start("assembler", "assemble")
	r, err := comp.Assembler.Assemble(ctx, out)
	if err != nil {
		log.Fail("assembler", "assemble failed", err, at.Since())
		return fmt.Errorf("assembler assemble: %w", err)
	}
	n, err := io.Copy(w, r)
	if err != nil {
		log.Fail("writer", "stream failed", err, at.Since())
		return fmt.Errorf("writer stream: %w", err)
	}
	at.Finish("assemble", n)
	return nil
}

func sanity(c Components) error {
	if c.Reader == nil || c.Source == nil || c.Target == nil || c.Align == nil ||
		c.Batcher == nil || c.Projector == nil || c.Assembler == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	return nil
}

func jobName(j Job) string {
	if j.Name != "" {
		return j.Name
	}
	return string(j.Output)
}

type countWriter struct{ n int64 }

func (c *countWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
