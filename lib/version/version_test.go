// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoMarksDirtyBuilds(t *testing.T) {
	original := GitDirty
	t.Cleanup(func() { GitDirty = original })

	GitDirty = "false"
	if strings.Contains(Info(), "-dirty") {
		t.Errorf("clean build reported dirty: %s", Info())
	}
	GitDirty = "true"
	if !strings.Contains(Info(), GitCommit+"-dirty") {
		t.Errorf("dirty build not marked: %s", Info())
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q", full)
	}
	if LogAttr().Key != "build" {
		t.Errorf("LogAttr key = %q", LogAttr().Key)
	}
}
