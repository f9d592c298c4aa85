package coerce

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// FromDB converts a value decoded by pgx (rows.Values) into a Value. oid is
// the column's type OID from the field description; it decides how a
// time.Time is rendered.
func FromDB(x any, oid uint32) Value {
	if x != nil && (oid == pgtype.JSONOID || oid == pgtype.JSONBOID) {
		b, err := json.Marshal(x)
		if err != nil {
			return Null()
		}
		return Text(string(b))
	}
	switch val := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(val)
	case int16:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int64:
		return Int(val)
	case float32:
		return Float(float64(val))
	case float64:
		return Float(val)
	case string:
		return Text(val)
	case time.Time:
		switch oid {
		case pgtype.DateOID:
			return Text(val.Format(layoutDate))
		default:
			return Text(val.Format("2006-01-02 15:04:05.999999"))
		}
	case pgtype.Time:
		if !val.Valid {
			return Null()
		}
		us := val.Microseconds
		h := us / 3_600_000_000
		us -= h * 3_600_000_000
		m := us / 60_000_000
		us -= m * 60_000_000
		s := us / 1_000_000
		us -= s * 1_000_000
		if us > 0 {
			return Text(fmt.Sprintf("%02d:%02d:%02d.%06d", h, m, s, us))
		}
		return Text(fmt.Sprintf("%02d:%02d:%02d", h, m, s))
	case pgtype.Numeric:
		return fromNumeric(val)
	case pgtype.Interval:
		if !val.Valid {
			return Null()
		}
		v, err := val.Value()
		if err != nil {
			return Null()
		}
		return Text(fmt.Sprint(v))
	case [16]byte:
		return Text(fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16]))
	case []byte:
		return Text(base64.StdEncoding.EncodeToString(val))
	case netip.Prefix:
		return Text(val.String())
	case net.HardwareAddr:
		return Text(val.String())
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return Null()
		}
		return Text(string(b))
	default:
		return Text(fmt.Sprint(val))
	}
}

// fromNumeric returns a Float when float64 holds the value exactly and the
// database's decimal text otherwise, so high-precision values survive a
// read-then-write round trip. NaN and infinities are text.
func fromNumeric(n pgtype.Numeric) Value {
	if !n.Valid {
		return Null()
	}
	dv, err := n.Value()
	if err != nil {
		return Null()
	}
	s, _ := dv.(string)
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return Text(s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Text(s)
	}
	digits := s
	if strings.Contains(digits, ".") {
		digits = strings.TrimRight(strings.TrimRight(digits, "0"), ".")
	}
	if strconv.FormatFloat(f, 'f', -1, 64) != digits {
		return Text(s)
	}
	return Float(f)
}
