package common

import (
	"errors"
	"sort"
	"sync"
)

const (
	KB = 1024
	MB = 1024 * 1024
)

/*
	tiered byte slice pool, used by buffers that grow in steps
*/
var MMP = NewMultiMemPool()

var defaultPool = []int{
	64, 128, 256, 512,
	1 * KB, 2 * KB, 4 * KB, 8 * KB, 16 * KB, 32 * KB, 64 * KB, 128 * KB, 256 * KB, 512 * KB,
	1 * MB, 2 * MB, 4 * MB, 8 * MB, 16 * MB,
}

func NewMultiMemPool() *MultiMemPool {
	mmp := &MultiMemPool{}
	for _, v := range defaultPool {
		mmp.Add(int64(v))
	}
	return mmp
}

func NewBuffer(chunkSize int64) []byte {
	buf := make([]byte, chunkSize)
	return buf
}

type MultiMemPool struct {
	Poollist []*MemPool
}

// Add registers a tier holding slices of exactly chunkSize bytes.
func (mmp *MultiMemPool) Add(chunkSize int64) {
	for _, p := range mmp.Poollist {
		if p.ChunkSize == chunkSize {
			return
		}
	}
	syncPool := &sync.Pool{
		New: func() interface{} {
			return NewBuffer(chunkSize)
		},
	}
	mmp.Poollist = append(mmp.Poollist, &MemPool{
		Pool:      syncPool,
		ChunkSize: chunkSize,
	})
	sort.Sort(PoolList(mmp.Poollist))
}

// Get returns the smallest tier able to hold chunkSize bytes, or the largest tier.
func (mmp *MultiMemPool) Get(chunkSize int64) *MemPool {
	for i := 0; i < len(mmp.Poollist); i++ {
		if chunkSize <= mmp.Poollist[i].ChunkSize {
			return mmp.Poollist[i]
		}
	}
	return mmp.Poollist[len(mmp.Poollist)-1]
}

// GetData returns a slice with len >= chunkSize. Requests above the largest
// tier are allocated directly.
func (mmp *MultiMemPool) GetData(chunkSize int64) ([]byte, error) {
	if mmp.Get(chunkSize).ChunkSize < chunkSize {
		return make([]byte, chunkSize), nil
	}
	return mmp.Get(chunkSize).Get(chunkSize)
}

// PutData hands a slice back. Only slices whose capacity matches a tier exactly
// are kept, anything else is left to the gc.
func (mmp *MultiMemPool) PutData(data []byte) {
	chunkSize := int64(cap(data))
	if chunkSize == 0 {
		return
	}
	if p := mmp.Get(chunkSize); p.ChunkSize == chunkSize {
		p.Put(data[:cap(data)])
	}
}

type PoolList []*MemPool

func (pl PoolList) Len() int           { return len(pl) }
func (pl PoolList) Swap(i, j int)      { pl[i], pl[j] = pl[j], pl[i] }
func (pl PoolList) Less(i, j int) bool { return pl[i].ChunkSize < pl[j].ChunkSize }

type MemPool struct {
	Pool      *sync.Pool
	ChunkSize int64
}

func (mp *MemPool) Get(chunkSize int64) ([]byte, error) {
	buf := mp.Pool.Get()
	switch data := buf.(type) {
	case []byte:
		if chunkSize > int64(len(data)) {
			return make([]byte, chunkSize), nil
		}
		return data, nil
	default:
		return nil, errors.New("unknow type")
	}
}

func (mp *MemPool) Put(buf []byte) {
	mp.Pool.Put(buf)
}

func GetData(chunkSize int64) ([]byte, error) {
	return MMP.GetData(chunkSize)
}

func PutData(data []byte) {
	MMP.PutData(data)
}
