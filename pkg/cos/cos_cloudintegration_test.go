//go:build cloudintegration

package cos_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/hy3d/pkg/cos"
	"github.com/3leaps/hy3d/test/cloudtest"
)

func TestUploader_Upload_Emulator(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	up, err := cos.New(ctx, cloudtest.COSConfig(bucket))
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "chair.glb")
	require.NoError(t, os.WriteFile(local, []byte("glTF-binary"), 0644))

	url, err := up.Upload(ctx, local, "retopology")
	require.NoError(t, err)
	assert.Equal(t, cos.PublicURL(bucket, cloudtest.Region, "hy3d/retopology/chair.glb"), url)

	got := cloudtest.GetObject(t, ctx, bucket, "hy3d/retopology/chair.glb")
	assert.Equal(t, "glTF-binary", string(got))
}

func TestUploader_ResolveInput_Emulator(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	up, err := cos.New(ctx, cloudtest.COSConfig(bucket))
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "crate.fbx")
	require.NoError(t, os.WriteFile(local, []byte("fbx"), 0644))

	resolved, uploaded, err := cos.ResolveInput(ctx, up, local, "part")
	require.NoError(t, err)
	assert.True(t, uploaded)
	assert.Contains(t, resolved, "hy3d/part/crate.fbx")
	assert.Equal(t, "fbx", string(cloudtest.GetObject(t, ctx, bucket, "hy3d/part/crate.fbx")))
}

func TestUploader_MissingBucket_Emulator(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	up, err := cos.New(ctx, cloudtest.COSConfig("missing-1250000000"))
	require.NoError(t, err)

	local := filepath.Join(t.TempDir(), "m.obj")
	require.NoError(t, os.WriteFile(local, []byte("obj"), 0644))

	_, err = up.Upload(ctx, local, "uv")
	require.Error(t, err)
	assert.ErrorIs(t, err, cos.ErrBucketNotFound)
}
