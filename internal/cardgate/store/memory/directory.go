package memory

import (
	"context"
	"sync"

	"github.com/cardgate/cardgate/internal/cardgate/store"
)

// Directory is an in-memory implementation of store.Directory and
// store.DirectoryAdmin for tests and dev environments. A single RWMutex
// over all maps gives the same pre-or-post visibility as the sqlite
// writer: a revoke is either fully visible to a reader or not at all.
type Directory struct {
	mu           sync.RWMutex
	buildings    map[string]store.Building
	accessPoints map[string]store.AccessPoint
	cards        map[string]store.Card // by card ID
	cardsByUID   map[string]string     // UID -> card ID
	grants       map[string]store.Grant
}

func NewDirectory() *Directory {
	return &Directory{
		buildings:    make(map[string]store.Building),
		accessPoints: make(map[string]store.AccessPoint),
		cards:        make(map[string]store.Card),
		cardsByUID:   make(map[string]string),
		grants:       make(map[string]store.Grant),
	}
}

func (d *Directory) CardByUID(_ context.Context, uid string) (store.Card, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.cardsByUID[uid]
	if !ok {
		return store.Card{}, store.ErrNotFound
	}
	return d.cards[id], nil
}

func (d *Directory) AccessPointByID(_ context.Context, id string) (store.AccessPoint, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ap, ok := d.accessPoints[id]
	if !ok {
		return store.AccessPoint{}, store.ErrNotFound
	}
	return ap, nil
}

func (d *Directory) GrantsFor(_ context.Context, cardID, accessPointID string) ([]store.Grant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []store.Grant
	for _, g := range d.grants {
		if g.CardID == cardID && g.AccessPointID == accessPointID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (d *Directory) PutBuilding(_ context.Context, b store.Building) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildings[b.ID] = b
	return nil
}

func (d *Directory) PutAccessPoint(_ context.Context, ap store.AccessPoint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accessPoints[ap.ID] = ap
	return nil
}

func (d *Directory) PutCard(_ context.Context, c store.Card) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.cards[c.ID]; ok && prev.UID != c.UID {
		delete(d.cardsByUID, prev.UID)
	}
	d.cards[c.ID] = c
	d.cardsByUID[c.UID] = c.ID
	return nil
}

func (d *Directory) SetCardStatus(_ context.Context, cardID string, status store.CardStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.cards[cardID]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	d.cards[cardID] = c
	return nil
}

func (d *Directory) PutGrant(_ context.Context, g store.Grant) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.grants[g.ID] = g
	return nil
}

func (d *Directory) DeleteGrant(_ context.Context, grantID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.grants[grantID]; !ok {
		return store.ErrNotFound
	}
	delete(d.grants, grantID)
	return nil
}
