package pipeline

import (
	"sync"

	"spanproj/pkg/contract"
)

// pool: 常驻 worker 池。一次运行创建一次，跨批次、跨作业复用。
// 任务通过有界通道分发；每个任务只写自己的结果槽位。
type pool struct {
	tasks chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

func newPool(n int) *pool {
	if n < 1 {
		n = 1
	}
	p := &pool{tasks: make(chan func(), n*2)}
	p.wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer p.wg.Done()
			for fn := range p.tasks {
				fn()
			}
		}()
	}
	return p
}

func (p *pool) submit(fn func()) { p.tasks <- fn }

// close 停止接收任务并等待全部 worker 退出。
func (p *pool) close() {
	p.once.Do(func() {
		close(p.tasks)
		p.wg.Wait()
	})
}

// pending: 已提交、尚未收集的批次。
type pending struct {
	batch contract.Batch
	wg    sync.WaitGroup
	outs  [][]contract.Projection
	errs  []error
}

// wait 阻塞至全部分片完成，按分片序拼回；返回首个（按分片序）错误。
func (p *pending) wait() ([]contract.Projection, error) {
	p.wg.Wait()
	for _, err := range p.errs {
		if err != nil {
			return nil, err
		}
	}
	out := make([]contract.Projection, 0, len(p.batch.Items))
	for _, o := range p.outs {
		out = append(out, o...)
	}
	return out, nil
}
