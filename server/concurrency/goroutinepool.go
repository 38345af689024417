/******************************************************************************
 *
 *  Description :
 *    Bounded pool of goroutines for fire-and-forget background work.
 *
 *****************************************************************************/

package concurrency

import "sync"

// Task represents a work task to be run on the specified goroutine pool.
type Task func()

// GoRoutinePool runs tasks on at most numWorkers goroutines. Workers stay alive until Stop.
type GoRoutinePool struct {
	// Work queue.
	work chan Task
	// Counter to control the number of already allocated/running goroutines.
	sem chan struct{}
	// Exit knob.
	stop     chan struct{}
	stopOnce sync.Once
	// Running workers.
	wg sync.WaitGroup
}

// NewGoRoutinePool allocates a new pool of up to `numWorkers` goroutines with a queue of
// `queueLen` pending tasks.
func NewGoRoutinePool(numWorkers, queueLen int) *GoRoutinePool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueLen < 0 {
		queueLen = 0
	}
	return &GoRoutinePool{
		work: make(chan Task, queueLen),
		sem:  make(chan struct{}, numWorkers),
		stop: make(chan struct{}),
	}
}

// Schedule enqueues a closure to run on the pool's goroutines. A new worker is started while
// fewer than numWorkers are running, otherwise the task waits in the queue. It blocks while the
// queue is full. Tasks scheduled after Stop are discarded.
func (p *GoRoutinePool) Schedule(task Task) {
	select {
	case <-p.stop:
		return
	default:
	}

	// Queued tasks are only picked up by running workers, so start one first if allowed.
	select {
	case p.sem <- struct{}{}:
		p.wg.Add(1)
		go p.worker(task)
		return
	default:
	}

	select {
	case p.work <- task:
	case <-p.stop:
	}
}

// Stop signals all goroutines to exit and waits for the running and queued tasks to finish.
func (p *GoRoutinePool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

// Worker goroutine.
func (p *GoRoutinePool) worker(task Task) {
	defer func() {
		<-p.sem
		p.wg.Done()
	}()
	for {
		task()
		select {
		case task = <-p.work:
		case <-p.stop:
			// Drain the queue before exiting.
			for {
				select {
				case task = <-p.work:
					task()
				default:
					return
				}
			}
		}
	}
}
