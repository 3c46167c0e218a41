package invoice

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// InvoiceIDPrefix marks committed invoice ids, e.g. inv_01J9ZK...
const InvoiceIDPrefix = "inv"

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewInvoiceID returns a k-sortable id. Ids generated within the same
// millisecond still increase strictly, so two saves in a row never collide.
func NewInvoiceID() string {
	idMu.Lock()
	defer idMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy)
	return InvoiceIDPrefix + "_" + id.String()
}

// NewItemID returns a random id for an item row.
func NewItemID() string {
	return uuid.NewString()
}
