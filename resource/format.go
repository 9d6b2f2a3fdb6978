// utilitário pequeno para formatação consistente de valores em headers.

package resource

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	// sem notação científica para valores comuns
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSeconds arredonda para cima; Retry-After nunca deve ser 0 ao bloquear.
func formatSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return formatInt(s)
}
