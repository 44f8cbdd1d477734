package relaylist

import (
	"strings"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

// File is the on-disk layout:
//
//	inbox:
//	  - wss://relay.example.com
//	outbox: [...]
//	dm: [...]
//	search: [...]
//	blocked: [...]
//	indexer: [...]
//	proxy: [...]
//	broadcast: [...]
//	trusted: [...]
type File struct {
	domain.RelayLists `yaml:",inline"`
}

func (f File) normalize() (domain.RelayLists, []string) {
	var rejected []string
	clean := func(urls []string) []string {
		kept := make([]string, 0, len(urls))
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if !domain.IsValidRelayURL(u) {
				rejected = append(rejected, u)
				continue
			}
			kept = append(kept, u)
		}
		return domain.Deduplicate(kept)
	}

	l := f.RelayLists
	return domain.RelayLists{
		Inbox:         clean(l.Inbox),
		Outbox:        clean(l.Outbox),
		DirectMessage: clean(l.DirectMessage),
		Search:        clean(l.Search),
		Blocked:       clean(l.Blocked),
		Indexer:       clean(l.Indexer),
		Proxy:         clean(l.Proxy),
		Broadcast:     clean(l.Broadcast),
		Trusted:       clean(l.Trusted),
	}, rejected
}
