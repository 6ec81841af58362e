// Package jsonl 实现回测结果的异步 JSONL 导出。
// 回测循环只投递记录，JSON 编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

// ErrClosed 写入器关闭后继续写入
var ErrClosed = errors.New("jsonl writer 已关闭")

// Writer 异步 JSONL 写入器
// 记录按投递顺序逐行写入；Flush 之前投递的记录保证已落入文件。
type Writer struct {
	// path 输出文件路径
	path string
	// records 待编码记录
	records chan any
	// flushes Flush 请求，回传 bufio.Flush 的结果
	flushes chan chan error
	// done 后台 goroutine 退出后关闭
	done chan struct{}

	// mu 保护 closed 与 records 的关闭，投递方持读锁
	mu       sync.RWMutex
	closed   bool
	closeErr error

	written atomic.Int64
	dropped atomic.Int64
}

// NewWriter 创建 JSONL 写入器，已存在的文件会被截断
// 参数 path: 输出文件路径，父目录不存在时自动创建
// 参数 bufferSize: 待编码记录队列长度，<=0 时取 1000
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path:    path,
		records: make(chan any, bufferSize),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	go w.drain(f)
	return w, nil
}

// Path 输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Written 已编码写入的行数
func (w *Writer) Written() int64 {
	return w.written.Load()
}

// Dropped 编码或写入失败的记录数
func (w *Writer) Dropped() int64 {
	return w.dropped.Load()
}

// Write 投递一条记录，队列满时阻塞
func (w *Writer) Write(v any) error {
	if w == nil {
		return fmt.Errorf("writer 为空")
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	w.records <- v
	return nil
}

// Flush 写出已投递的记录并刷新文件缓冲区
func (w *Writer) Flush() error {
	if w == nil {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	reply := make(chan error, 1)
	w.flushes <- reply
	return <-reply
}

// Close 写完队列中的记录后关闭文件，可重复调用
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.records)
	}
	w.mu.Unlock()

	<-w.done
	return w.closeErr
}

func (w *Writer) drain(f *os.File) {
	defer close(w.done)

	bw := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for {
		select {
		case v, ok := <-w.records:
			if !ok {
				err := bw.Flush()
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				w.closeErr = err
				return
			}
			w.encode(enc, v)
		case reply := <-w.flushes:
			w.encodeQueued(enc)
			reply <- bw.Flush()
		}
	}
}

// encodeQueued 写出 Flush 之前已入队的记录
// Flush 持有读锁，期间 records 不会被关闭。
func (w *Writer) encodeQueued(enc *json.Encoder) {
	for {
		select {
		case v, ok := <-w.records:
			if !ok {
				return
			}
			w.encode(enc, v)
		default:
			return
		}
	}
}

func (w *Writer) encode(enc *json.Encoder, v any) {
	if err := enc.Encode(v); err != nil {
		w.dropped.Add(1)
		return
	}
	w.written.Add(1)
}
