package camera

// Buffer is an encoded image that must be released exactly once.
// It hides whether the bytes belong to a pooled source frame or to a
// one-off transcode, so callers have a single release path.
type Buffer interface {
	Bytes() []byte
	Release()
}

// Hold wraps a frame acquired from src. Release returns it to src.
func Hold(src Source, f *Frame) Buffer {
	return &frameBuffer{src: src, frame: f}
}

// NewBuffer wraps bytes produced outside a Source. free, if not nil, runs on
// Release; pass nil for plain heap memory.
func NewBuffer(data []byte, free func()) Buffer {
	return &heapBuffer{data: data, free: free}
}

type frameBuffer struct {
	src   Source
	frame *Frame
}

func (b *frameBuffer) Bytes() []byte {
	if b.frame == nil {
		return nil
	}
	return b.frame.Data
}

func (b *frameBuffer) Release() {
	if b.frame == nil {
		return
	}
	f := b.frame
	b.frame = nil
	b.src.Release(f)
}

type heapBuffer struct {
	data     []byte
	free     func()
	released bool
}

func (b *heapBuffer) Bytes() []byte {
	return b.data
}

func (b *heapBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.data = nil
	if b.free != nil {
		b.free()
	}
}
