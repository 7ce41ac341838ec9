// Command seedbucket uploads fixture objects described by a YAML manifest
// into a bucket. It exists for local stacks and end-to-end runs, where the
// emulator starts empty.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/bucketscan/internal/adapter/awsconf"
	s3store "github.com/fairyhunter13/bucketscan/internal/adapter/blobstore/s3"
	"github.com/fairyhunter13/bucketscan/internal/config"
)

type manifest struct {
	Bucket  string         `yaml:"bucket"`
	Objects []manifestItem `yaml:"objects"`
}

type manifestItem struct {
	Key         string `yaml:"key"`
	Content     string `yaml:"content"`
	ContentFile string `yaml:"content_file"`
	ContentType string `yaml:"content_type"`
}

func main() {
	manifestPath := flag.String("manifest", "testdata/objects.yaml", "path to the fixture manifest")
	bucketOverride := flag.String("bucket", "", "override the manifest bucket")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	m, err := loadManifest(*manifestPath)
	if err != nil {
		log.Fatal(err)
	}
	bucket := m.Bucket
	if *bucketOverride != "" {
		bucket = *bucketOverride
	}
	if bucket == "" {
		log.Fatal("no bucket: set one in the manifest or pass -bucket")
	}

	ctx := context.Background()
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	store := s3store.New(awsCfg, cfg.AWSEndpointURL, cfg.S3UsePathStyle)

	for _, obj := range m.Objects {
		body, err := itemBody(obj, filepath.Dir(*manifestPath))
		if err != nil {
			log.Fatal(err)
		}
		ct := obj.ContentType
		if ct == "" {
			ct = mimetype.Detect(body).String()
		}
		if err := store.Put(ctx, bucket, obj.Key, body, ct); err != nil {
			log.Fatal(err)
		}
		log.Printf("uploaded s3://%s/%s (%d bytes, %s)", bucket, obj.Key, len(body), ct)
	}
	log.Printf("seeded %d objects into %s", len(m.Objects), bucket)
}

func loadManifest(path string) (manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Objects) == 0 {
		return manifest{}, fmt.Errorf("manifest %s lists no objects", path)
	}
	for _, obj := range m.Objects {
		if obj.Key == "" {
			return manifest{}, fmt.Errorf("manifest %s has an object without a key", path)
		}
	}
	return m, nil
}

// itemBody resolves the object content: inline wins, content_file paths are
// relative to the manifest.
func itemBody(obj manifestItem, baseDir string) ([]byte, error) {
	if obj.Content != "" {
		return []byte(obj.Content), nil
	}
	if obj.ContentFile == "" {
		return nil, fmt.Errorf("object %s has neither content nor content_file", obj.Key)
	}
	p := obj.ContentFile
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read content for %s: %w", obj.Key, err)
	}
	return b, nil
}
