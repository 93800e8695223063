package blobstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type Object struct {
	Data        []byte
	ContentType string
	Filename    string
}

// MemoryGateway keeps objects in process for tests and offline runs. Objects
// are served back under baseURL by the HTTP layer.
type MemoryGateway struct {
	mu      sync.RWMutex
	objects map[string]Object
	baseURL string
	policy  policy
}

func NewMemoryGateway(baseURL string, maxBytes int64) (*MemoryGateway, error) {
	p, err := newPolicy(maxBytes)
	if err != nil {
		return nil, err
	}
	return &MemoryGateway{
		objects: make(map[string]Object),
		baseURL: strings.TrimRight(baseURL, "/"),
		policy:  p,
	}, nil
}

func (g *MemoryGateway) Store(ctx context.Context, data []byte, contentType, filenameHint string) (string, error) {
	mediaType, err := g.policy.check(data, contentType)
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	key := g.policy.objectKey(mediaType)
	for {
		if _, taken := g.objects[key]; !taken {
			break
		}
		key = g.policy.objectKey(mediaType)
	}
	g.objects[key] = Object{
		Data:        append([]byte(nil), data...),
		ContentType: mediaType,
		Filename:    filenameHint,
	}
	return fmt.Sprintf("%s/%s", g.baseURL, key), nil
}

func (g *MemoryGateway) Get(key string) (Object, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	obj, ok := g.objects[key]
	return obj, ok
}

func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.objects)
}
