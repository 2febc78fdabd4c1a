// Package export renders a full-audit CSV view of a target's vouches and
// delivers it to the requester's private channel. The rendered artifact
// never outlives the delivery attempt.
package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/vouchlab/vouchd/internal/ledger"
)

// Header is the fixed CSV header row.
const Header = "id,voucherId,voucherDisplayName,voucherTag,targetId,targetDisplayName,targetTag,reason,timestamp,communityId,removed"

// Render produces the CSV document for the given records, in their given
// order. Every value is quoted, with embedded quotes doubled. Unlike the
// display paths, removed records are included: the export is a full audit
// view.
func Render(records []ledger.Vouch) string {
	var b strings.Builder
	b.WriteString(Header)
	b.WriteByte('\n')

	for _, v := range records {
		fields := []string{
			strconv.FormatInt(v.ID, 10),
			v.VoucherID,
			v.VoucherDisplayName,
			v.VoucherTag,
			v.TargetID,
			v.TargetDisplayName,
			v.TargetTag,
			v.Reason,
			v.CreatedAt.UTC().Format(time.RFC3339),
			v.CommunityID,
			strconv.FormatBool(v.Removed),
		}
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}
	return b.String()
}
