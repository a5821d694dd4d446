package artifact_test

import (
	"testing"

	"github.com/hupe1980/tripmesh/artifact"
	"github.com/hupe1980/tripmesh/artifact/artifacttest"
)

func TestInMemoryStore_Contract(t *testing.T) {
	artifacttest.RunStoreContract(t, artifact.NewInMemoryStore())
}
