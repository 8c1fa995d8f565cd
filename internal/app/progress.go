package app

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// writerProgress はリモート問い合わせ中の進捗を端末に表示する。navigation.Progressを実装する。
type writerProgress struct {
	mu sync.Mutex
	w  io.Writer
}

func newWriterProgress(w io.Writer) *writerProgress {
	return &writerProgress{w: w}
}

// Begin はメッセージを表示し、完了時に経過時間を表示する関数を返す。
func (p *writerProgress) Begin(message string) func() {
	start := time.Now()
	p.print("%s", message)

	var once sync.Once
	return func() {
		once.Do(func() {
			p.print(" done (%s)\n", time.Since(start).Round(time.Millisecond))
		})
	}
}

func (p *writerProgress) print(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}
