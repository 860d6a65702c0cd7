// Package store 按到期日缓存期权链快照。
// 回放时每周需要两份快照：周一的入场链与周五的结算价。
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"theta-guard/internal/core/model"
	"theta-guard/internal/util/timeutil"
)

// Snapshot 单个到期日的快照
type Snapshot struct {
	// Entry 周一入场时看到的期权链
	Entry []model.OptionRecord `json:"entry"`
	// Settlement 到期日结算价
	Settlement []model.SettlementRecord `json:"settlement"`
}

// file 快照文件格式：{"chains": {"2024-01-12": {"entry": [...], "settlement": [...]}}}
type file struct {
	Chains map[string]Snapshot `json:"chains"`
}

// Store 期权链快照缓存
// 注意：加载完成后只读；若需并发写入请在外部加锁。
type Store struct {
	// chains key 为到期日 YYYY-MM-DD
	chains map[string]*Snapshot
}

// New 创建空缓存
func New() *Store {
	return &Store{chains: make(map[string]*Snapshot)}
}

// Load 从 JSON 文件加载快照
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取期权链文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析快照 JSON
func Parse(data []byte) (*Store, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析期权链文件失败: %w", err)
	}
	s := New()
	for exp, snap := range f.Chains {
		d, err := timeutil.ParseDate(exp)
		if err != nil {
			return nil, fmt.Errorf("到期日 %q 无效: %w", exp, err)
		}
		snap := snap
		s.Put(d, &snap)
	}
	return s, nil
}

// Put 写入或覆盖某到期日的快照
func (s *Store) Put(expiration time.Time, snap *Snapshot) {
	if snap == nil {
		return
	}
	s.chains[timeutil.FormatDate(expiration)] = snap
}

// Get 获取某到期日的快照，可能为 nil
func (s *Store) Get(expiration time.Time) *Snapshot {
	return s.chains[timeutil.FormatDate(expiration)]
}

// GetPair 获取周一对应的入场链与周五结算价
// 到期日为周一 + 4 天；任一缺失时返回 nil。
func (s *Store) GetPair(monday time.Time) (entry []model.OptionRecord, settlement []model.SettlementRecord) {
	snap := s.Get(timeutil.FridayOf(monday))
	if snap == nil {
		return nil, nil
	}
	return snap.Entry, snap.Settlement
}

// Expirations 返回已缓存的到期日（升序）
func (s *Store) Expirations() []string {
	out := make([]string, 0, len(s.chains))
	for k := range s.chains {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len 返回缓存的到期日数量
func (s *Store) Len() int {
	return len(s.chains)
}
