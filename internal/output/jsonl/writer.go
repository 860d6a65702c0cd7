// Package jsonl 实现追加式 JSONL 文件写入。
// 编码与文件 I/O 在后台 goroutine 串行完成，调用方可选择异步投递或同步落盘。
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

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("jsonl: writer closed")

// DefaultBufferSize 默认投递队列长度
const DefaultBufferSize = 256

type opType int

const (
	opWrite opType = iota
	opFlush
	opClose
)

type op struct {
	typ opType
	val any
	// done 非空时回传本次操作的结果；写操作同时触发 flush
	done chan error
}

// Writer JSONL 追加写入器
type Writer struct {
	path string
	ch   chan op

	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
	// failed 编码或写入失败的记录数
	failed atomic.Int64

	sendMu sync.Mutex
	wg     sync.WaitGroup
}

// NewWriter 创建写入器，目录不存在时自动创建
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{path: path, ch: make(chan op, bufferSize)}
	w.wg.Add(1)
	go w.loop(f)
	return w, nil
}

// Path 返回输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Failed 返回编码或写入失败的记录数
func (w *Writer) Failed() int64 {
	return w.failed.Load()
}

// Write 异步投递一条记录；失败只计入 Failed
func (w *Writer) Write(v any) error {
	return w.send(op{typ: opWrite, val: v})
}

// WriteSync 写入一条记录并 flush，返回编码或 I/O 错误
func (w *Writer) WriteSync(v any) error {
	done := make(chan error, 1)
	if err := w.send(op{typ: opWrite, val: v, done: done}); err != nil {
		return err
	}
	return <-done
}

// Flush 将缓冲内容写入文件
func (w *Writer) Flush() error {
	done := make(chan error, 1)
	if err := w.send(op{typ: opFlush, done: done}); err != nil {
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	}
	return <-done
}

func (w *Writer) send(o op) error {
	if w == nil {
		return fmt.Errorf("jsonl: writer 为空")
	}
	if w.closed.Load() {
		return ErrClosed
	}
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.closed.Load() {
		return ErrClosed
	}
	w.ch <- o
	return nil
}

// Close 关闭写入器（会先 flush），可重复调用
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.closeOnce.Do(func() {
		w.sendMu.Lock()
		defer w.sendMu.Unlock()
		w.closed.Store(true)
		done := make(chan error, 1)
		w.ch <- op{typ: opClose, done: done}
		w.closeErr = <-done
		close(w.ch)
	})
	w.wg.Wait()
	return w.closeErr
}

func (w *Writer) loop(f *os.File) {
	defer w.wg.Done()

	bw := bufio.NewWriterSize(f, 64<<10)
	reply := func(done chan error, err error) {
		if done != nil {
			done <- err
		}
	}

	for req := range w.ch {
		switch req.typ {
		case opWrite:
			err := w.encode(bw, req.val)
			if err != nil {
				w.failed.Add(1)
			} else if req.done != nil {
				err = bw.Flush()
			}
			reply(req.done, err)
		case opFlush:
			reply(req.done, bw.Flush())
		case opClose:
			err := bw.Flush()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			reply(req.done, err)
			return
		}
	}
}

func (w *Writer) encode(bw *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("编码记录失败: %w", err)
	}
	b = append(b, '\n')
	if _, err := bw.Write(b); err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	return nil
}
