package runner

import "fmt"

// IDPool hands out worker ids. Everything indexed by id (value caches, local
// blocks) is owned by whoever holds the id.
type IDPool struct {
	ids  chan int
	size int
}

func NewIDPool(size int) *IDPool {
	if size < 1 {
		panic(fmt.Sprintf("worker id pool needs at least one id, got %d", size))
	}
	p := &IDPool{ids: make(chan int, size), size: size}
	for i := 0; i < size; i++ {
		p.ids <- i
	}
	return p
}

// Acquire takes a free id. An empty pool means more concurrent workers than
// ids, which is fatal.
func (p *IDPool) Acquire() int {
	select {
	case id := <-p.ids:
		return id
	default:
		panic(fmt.Sprintf("worker id pool exhausted: all %d ids in use", p.size))
	}
}

// Release returns id to the pool
func (p *IDPool) Release(id int) {
	if id < 0 || id >= p.size {
		panic(fmt.Sprintf("worker id %d out of range [0,%d)", id, p.size))
	}
	select {
	case p.ids <- id:
	default:
		panic(fmt.Sprintf("worker id %d released twice", id))
	}
}

func (p *IDPool) Size() int { return p.size }

// Available is the number of ids not currently held
func (p *IDPool) Available() int { return len(p.ids) }
