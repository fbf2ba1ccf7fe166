package main

import (
	"context"
	"io"
	"sync"
	"time"
)

// MockBucketClient is an in-memory single-account store. Buckets missing from
// BucketErrors and not yet created report ErrBucketNotFound.
type MockBucketClient struct {
	BucketErrors   map[string]error
	CreateErr      error
	HeadErrors     map[string]error
	PutErrors      map[string]error
	Objects        map[string]ObjectInfo
	Bodies         map[string][]byte
	Now            func() time.Time
	HeadBucketReqs []string
	CreateRequests []MockRequest
	HeadRequests   []MockRequest
	PutRequests    []MockRequest
	lock           sync.Mutex
}

type MockRequest struct {
	Bucket string
	Key    string
	Region string
}

func NewMockClient(objects map[string]ObjectInfo) *MockBucketClient {
	if objects == nil {
		objects = make(map[string]ObjectInfo)
	}
	return &MockBucketClient{
		BucketErrors: make(map[string]error),
		HeadErrors:   make(map[string]error),
		PutErrors:    make(map[string]error),
		Objects:      objects,
		Bodies:       make(map[string][]byte),
		Now:          time.Now,
	}
}

func (m *MockBucketClient) HeadBucket(ctx context.Context, bucket string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.HeadBucketReqs = append(m.HeadBucketReqs, bucket)
	err, ok := m.BucketErrors[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	return err
}

func (m *MockBucketClient) CreateBucket(ctx context.Context, bucket string, region string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.CreateRequests = append(m.CreateRequests, MockRequest{Bucket: bucket, Region: region})
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.BucketErrors[bucket] = nil
	return nil
}

func (m *MockBucketClient) HeadObject(ctx context.Context, bucket string, key string) RemoteLookup {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.HeadRequests = append(m.HeadRequests, MockRequest{Bucket: bucket, Key: key})
	if err := m.HeadErrors[key]; err != nil {
		return LookupError(err)
	}
	info, ok := m.Objects[key]
	if !ok {
		return NotFound()
	}
	return Found(info)
}

func (m *MockBucketClient) PutObject(ctx context.Context, bucket string, key string, body io.Reader) error {
	data, readErr := io.ReadAll(body)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.PutRequests = append(m.PutRequests, MockRequest{Bucket: bucket, Key: key})
	if readErr != nil {
		return readErr
	}
	if err := m.PutErrors[key]; err != nil {
		return err
	}
	m.Objects[key] = ObjectInfo{LastModified: m.Now().UTC().Truncate(time.Second), Size: int64(len(data))}
	m.Bodies[key] = data
	return nil
}

// PutKeys returns the keys of every put, in call order.
func (m *MockBucketClient) PutKeys() []string {
	m.lock.Lock()
	defer m.lock.Unlock()
	keys := make([]string, 0, len(m.PutRequests))
	for _, req := range m.PutRequests {
		keys = append(keys, req.Key)
	}
	return keys
}

func (m *MockBucketClient) ResetRequests() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.HeadBucketReqs = nil
	m.CreateRequests = nil
	m.HeadRequests = nil
	m.PutRequests = nil
}

var _ BucketClient = (*MockBucketClient)(nil)
