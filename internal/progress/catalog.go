package progress

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

//go:embed quests.yaml
var defaultFiles embed.FS

// Quest ids the game hooks advance.
const (
	QuestPlay      = "play"
	QuestWin       = "win"
	QuestCapture   = "capture"
	QuestPromote   = "promote"
	QuestCheckmate = "checkmate"
)

// QuestDef is one daily quest.
type QuestDef struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Target int    `yaml:"target"`
	Reward int    `yaml:"reward"`
}

type catalogFile struct {
	Quests []QuestDef `yaml:"quests"`
}

// Catalog is the ordered quest list.
type Catalog struct {
	defs []QuestDef
	byID map[string]QuestDef
}

// LoadCatalog reads the embedded quest list, or overridePath when set.
func LoadCatalog(overridePath string) (*Catalog, error) {
	var (
		raw []byte
		err error
	)
	if p := strings.TrimSpace(overridePath); p != "" {
		raw, err = os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read quests file: %w", err)
		}
	} else {
		raw, err = fs.ReadFile(defaultFiles, "quests.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded quests: %w", err)
		}
	}
	return parseCatalog(raw)
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse quests: %w", err)
	}
	c := &Catalog{byID: make(map[string]QuestDef, len(f.Quests))}
	for _, q := range f.Quests {
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" || q.Target <= 0 || q.Reward < 0 {
			return nil, fmt.Errorf("invalid quest %+v", q)
		}
		if _, dup := c.byID[q.ID]; dup {
			return nil, fmt.Errorf("duplicate quest id %q", q.ID)
		}
		c.byID[q.ID] = q
		c.defs = append(c.defs, q)
	}
	return c, nil
}

// All returns the quests in catalog order.
func (c *Catalog) All() []QuestDef { return append([]QuestDef(nil), c.defs...) }

func (c *Catalog) Get(id string) (QuestDef, bool) {
	q, ok := c.byID[id]
	return q, ok
}
