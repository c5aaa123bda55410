package memory

import (
	"strings"

	"geokd/pkg/common"

	"github.com/google/btree"
)

// Item 以 (小写城市名, 插入序号) 为键，同名城市按插入顺序排列
type Item struct {
	Name string
	Seq  uint64
	Rec  common.Record
}

func (i Item) Less(than btree.Item) bool {
	o := than.(Item)
	if i.Name != o.Name {
		return i.Name < o.Name
	}
	return i.Seq < o.Seq
}

// Catalog 是城市名的有序索引，补充 KD-Tree 无法回答的按名查找
type Catalog struct {
	tree   *btree.BTree
	degree int
	seq    uint64
}

func NewCatalog(degree int) *Catalog {
	return &Catalog{
		tree:   btree.New(degree),
		degree: degree,
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Catalog) Add(rec common.Record) {
	c.seq++
	c.tree.ReplaceOrInsert(Item{Name: normalize(rec.City), Seq: c.seq, Rec: rec})
}

// Reset 丢弃旧索引并按给定顺序重建
func (c *Catalog) Reset(records []common.Record) {
	c.tree = btree.New(c.degree)
	c.seq = 0
	for _, rec := range records {
		c.Add(rec)
	}
}

// Lookup 返回与 name 完全匹配（忽略大小写）的所有记录
func (c *Catalog) Lookup(name string) []common.Record {
	key := normalize(name)
	var out []common.Record
	c.tree.AscendGreaterOrEqual(Item{Name: key}, func(i btree.Item) bool {
		item := i.(Item)
		if item.Name != key {
			return false
		}
		out = append(out, item.Rec)
		return true
	})
	return out
}

// Prefix 返回名字以 prefix 开头的记录；limit < 0 表示不限制，0 返回空
func (c *Catalog) Prefix(prefix string, limit int) []common.Record {
	if limit == 0 {
		return []common.Record{}
	}
	key := normalize(prefix)
	var out []common.Record
	c.tree.AscendGreaterOrEqual(Item{Name: key}, func(i btree.Item) bool {
		item := i.(Item)
		if !strings.HasPrefix(item.Name, key) {
			return false
		}
		out = append(out, item.Rec)
		return limit < 0 || len(out) < limit
	})
	return out
}

func (c *Catalog) Len() int {
	return c.tree.Len()
}
