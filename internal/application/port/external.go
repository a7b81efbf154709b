package port

import (
	"context"

	"github.com/nordstift/foundation-console/internal/domain/workflow"
)

// DocumentGenerator produces the regulatory documents fired as a step
// side effect. The engine never parses document content; it only
// records the returned document IDs on the side-effect marker.
type DocumentGenerator interface {
	Generate(ctx context.Context, kind workflow.SideEffectKind, instance *workflow.Instance) ([]string, error)
}

// SignatureProvider verifies a signer's identity and collects a
// digital signature over the given documents. A declined signature
// is reported as workflow.ErrSignatureDeclined (possibly wrapped);
// any other error is a provider failure.
type SignatureProvider interface {
	VerifyAndSign(ctx context.Context, signerID string, documentIDs []string) (*workflow.SignatureRecord, error)
}
