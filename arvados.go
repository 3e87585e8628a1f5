// Copyright (C) The Lightning Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package relbase

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"git.arvados.org/arvados.git/lib/cmd"
	"git.arvados.org/arvados.git/sdk/go/arvados"
	"git.arvados.org/arvados.git/sdk/go/arvadosclient"
	"git.arvados.org/arvados.git/sdk/go/keepclient"
	"github.com/klauspost/pgzip"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

var containerPollInterval = 5 * time.Second

// arvadosContainerRunner runs a relbase subcommand (or Prog) in a
// container on an Arvados cluster and returns the UUID of the output
// collection.
type arvadosContainerRunner struct {
	Client      *arvados.Client
	Name        string
	ProjectUUID string
	VCPUs       int
	RAM         int64
	Prog        string // if empty, run the current executable
	Args        []string
	Mounts      map[string]map[string]interface{}
	Priority    int
}

func (runner *arvadosContainerRunner) Run() (string, error) {
	return runner.RunContext(context.Background())
}

func (runner *arvadosContainerRunner) RunContext(ctx context.Context) (string, error) {
	if runner.ProjectUUID == "" {
		return "", errors.New("cannot run arvados container: ProjectUUID not provided")
	}
	mounts := map[string]map[string]interface{}{
		"/mnt/output": {
			"kind":     "collection",
			"writable": true,
		},
	}
	for path, mnt := range runner.Mounts {
		mounts[path] = mnt
	}
	prog := runner.Prog
	if prog == "" {
		prog = "/mnt/cmd/" + executableName
		cmdUUID, err := runner.uploadExecutable()
		if err != nil {
			return "", err
		}
		mounts["/mnt/cmd"] = map[string]interface{}{
			"kind": "collection",
			"uuid": cmdUUID,
		}
	}
	priority := runner.Priority
	if priority < 1 {
		priority = 500
	}
	rc := arvados.RuntimeConstraints{
		VCPUs: runner.VCPUs,
		RAM:   runner.RAM,
	}
	var cr arvados.ContainerRequest
	err := runner.Client.RequestAndDecodeContext(ctx, &cr, "POST", "arvados/v1/container_requests", nil, map[string]interface{}{
		"container_request": map[string]interface{}{
			"owner_uuid":          runner.ProjectUUID,
			"name":                runner.Name,
			"container_image":     runtimeImage,
			"command":             append([]string{prog}, runner.Args...),
			"mounts":              mounts,
			"use_existing":        true,
			"output_path":         "/mnt/output",
			"runtime_constraints": rc,
			"priority":            priority,
			"state":               arvados.ContainerRequestStateCommitted,
			"container_count_max": 1,
		},
	})
	if err != nil {
		return "", err
	}
	log.Printf("container request UUID: %s", cr.UUID)

	ticker := time.NewTicker(containerPollInterval)
	defer ticker.Stop()
	lastState := cr.State
	for cr.State != arvados.ContainerRequestStateFinal {
		select {
		case <-ctx.Done():
			err := runner.Client.RequestAndDecode(&cr, "PATCH", "arvados/v1/container_requests/"+cr.UUID, nil, map[string]interface{}{
				"container_request": map[string]interface{}{
					"priority": 0,
				},
			})
			if err != nil {
				log.Errorf("error while trying to cancel container request %s: %s", cr.UUID, err)
			}
			return "", ctx.Err()
		case <-ticker.C:
			err := runner.Client.RequestAndDecodeContext(ctx, &cr, "GET", "arvados/v1/container_requests/"+cr.UUID, nil, nil)
			if err != nil {
				log.Warnf("error getting container request: %s", err)
				continue
			}
			if cr.State != lastState {
				log.Printf("container request state: %s (container %s)", cr.State, cr.ContainerUUID)
				lastState = cr.State
			}
		}
	}

	var c arvados.Container
	err = runner.Client.RequestAndDecodeContext(ctx, &c, "GET", "arvados/v1/containers/"+cr.ContainerUUID, nil, nil)
	if err != nil {
		return "", err
	} else if c.State != arvados.ContainerStateComplete {
		return "", fmt.Errorf("container did not complete: %s", c.State)
	} else if c.ExitCode != 0 {
		return "", fmt.Errorf("container exited %d", c.ExitCode)
	}
	return cr.OutputUUID, nil
}

var collectionInPathRe = regexp.MustCompile(`^(.*/)?([0-9a-f]{32}\+[0-9]+|[0-9a-z]{5}-[0-9a-z]{5}-[0-9a-z]{15})(/.*)?$`)

// TranslatePaths rewrites each collection path (".../<uuid or
// pdh>/file") to its mount point inside the container, adding the
// needed mounts. "" and "-" are left alone.
func (runner *arvadosContainerRunner) TranslatePaths(paths ...*string) error {
	if runner.Mounts == nil {
		runner.Mounts = make(map[string]map[string]interface{})
	}
	for _, path := range paths {
		if *path == "" || *path == "-" {
			continue
		}
		m := collectionInPathRe.FindStringSubmatch(*path)
		if m == nil {
			return fmt.Errorf("cannot find uuid in path: %q", *path)
		}
		collID := m[2]
		if _, ok := runner.Mounts["/mnt/"+collID]; !ok {
			mnt := map[string]interface{}{"kind": "collection"}
			if len(collID) == 27 {
				mnt["uuid"] = collID
			} else {
				mnt["portable_data_hash"] = collID
			}
			runner.Mounts["/mnt/"+collID] = mnt
		}
		*path = "/mnt/" + collID + m[3]
	}
	return nil
}

// executableName is the file name of the uploaded relbase binary
// inside its collection, and executableProperty is the collection
// property holding the binary's blake2b-256 digest.
const (
	executableName     = "relbase"
	executableProperty = "relbase_blake2b"
)

var uploadMtx sync.Mutex

// uploadExecutable makes sure the running relbase binary is available
// in a collection owned by the runner's project and returns that
// collection's UUID. A collection from an earlier run is reused when
// its version name and digest match.
func (runner *arvadosContainerRunner) uploadExecutable() (string, error) {
	uploadMtx.Lock()
	defer uploadMtx.Unlock()
	exe, err := ioutil.ReadFile("/proc/self/exe")
	if err != nil {
		return "", fmt.Errorf("reading own executable: %w", err)
	}
	digest := fmt.Sprintf("%x", blake2b.Sum256(exe))
	collName := "relbase executable " + cmd.Version.String()
	uuid, err := runner.findExecutable(collName, digest)
	if err != nil || uuid != "" {
		return uuid, err
	}

	log.Infof("uploading %d-byte relbase executable to project %s", len(exe), runner.ProjectUUID)
	ac, err := arvadosclient.New(runner.Client)
	if err != nil {
		return "", err
	}
	var coll arvados.Collection
	fs, err := coll.FileSystem(runner.Client, keepclient.New(ac))
	if err != nil {
		return "", err
	}
	f, err := fs.OpenFile(executableName, os.O_CREATE|os.O_WRONLY, 0777)
	if err != nil {
		return "", err
	}
	if _, err = f.Write(exe); err != nil {
		f.Close()
		return "", fmt.Errorf("writing executable to keep: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	manifest, err := fs.MarshalManifest(".")
	if err != nil {
		return "", err
	}
	err = runner.Client.RequestAndDecode(&coll, "POST", "arvados/v1/collections", nil, map[string]interface{}{
		"collection": map[string]interface{}{
			"owner_uuid":    runner.ProjectUUID,
			"name":          collName,
			"manifest_text": manifest,
			"properties":    map[string]interface{}{executableProperty: digest},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating executable collection: %w", err)
	}
	log.Infof("relbase executable is in collection %s", coll.UUID)
	return coll.UUID, nil
}

// findExecutable returns the UUID of an existing collection with the
// given name and digest, or "" if there is none.
func (runner *arvadosContainerRunner) findExecutable(collName, digest string) (string, error) {
	var found arvados.CollectionList
	err := runner.Client.RequestAndDecode(&found, "GET", "arvados/v1/collections", nil, arvados.ListOptions{
		Limit: 1,
		Count: "none",
		Filters: []arvados.Filter{
			{Attr: "owner_uuid", Operator: "=", Operand: runner.ProjectUUID},
			{Attr: "name", Operator: "=", Operand: collName},
			{Attr: "properties." + executableProperty, Operator: "=", Operand: digest},
		},
	})
	if err != nil {
		return "", fmt.Errorf("looking up executable collection: %w", err)
	}
	if len(found.Items) == 0 {
		return "", nil
	}
	log.Debugf("reusing relbase executable in collection %s", found.Items[0].UUID)
	return found.Items[0].UUID, nil
}

// zopen opens fnm for reading, transparently decompressing it if the
// name ends in ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: gzip: %w", fnm, err)
	}
	return gzipr{rdr, f}, nil
}

// gzipr closes both the decompressor and the underlying file.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

var (
	keepFS    arvados.CustomFileSystem
	keepFSMtx sync.Mutex
)

// collectionFS returns the Arvados site filesystem, connecting on
// first use.
func collectionFS() (arvados.CustomFileSystem, error) {
	keepFSMtx.Lock()
	defer keepFSMtx.Unlock()
	if keepFS != nil {
		return keepFS, nil
	}
	client := arvados.NewClientFromEnv()
	ac, err := arvadosclient.New(client)
	if err != nil {
		return nil, fmt.Errorf("connecting to Arvados: %w", err)
	}
	ac.Client = arvados.DefaultSecureClient
	kc := keepclient.New(ac)
	kc.HTTPClient = arvados.DefaultSecureClient
	kc.BlockCache = &keepclient.BlockCache{MaxBlocks: 4}
	keepFS = client.SiteFileSystem(kc)
	log.Debugf("reading population files from Arvados at %s", client.APIHost)
	return keepFS, nil
}

// open reads population files that live in a collection
// (".../<uuid or pdh>/path") through Arvados when ARVADOS_API_HOST is
// set. Everything else is read from the local filesystem.
func open(fnm string) (io.ReadCloser, error) {
	m := collectionInPathRe.FindStringSubmatch(fnm)
	if m == nil || os.Getenv("ARVADOS_API_HOST") == "" {
		return os.Open(fnm)
	}
	fs, err := collectionFS()
	if err != nil {
		return nil, err
	}
	log.Infof("%s: reading %s from collection %s", fnm, m[3], m[2])
	return fs.Open("by_id/" + m[2] + m[3])
}
