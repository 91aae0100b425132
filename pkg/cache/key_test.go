package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "simple endpoint no params",
			key: CacheKey{
				Endpoint: "/folders/",
			},
			want: "placemark:cache:folders",
		},
		{
			name: "endpoint with query params (sorted)",
			key: CacheKey{
				Endpoint: "/places",
				QueryParams: url.Values{
					"take":     []string{"10"},
					"cursorId": []string{"42"},
				},
			},
			want: "placemark:cache:places:cursorId=42:take=10",
		},
		{
			name: "repeated query params keep every value",
			key: CacheKey{
				Endpoint: "/places",
				QueryParams: url.Values{
					"categoryList": []string{"cafe", "bar"},
					"take":         []string{"10"},
				},
			},
			want: "placemark:cache:places:categoryList=bar,cafe:take=10",
		},
		{
			name: "authenticated request",
			key: CacheKey{
				Endpoint:  "/folders/7/places",
				Principal: "abcdef",
			},
			want: "placemark:cache:folders/7/places:p=abcdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Endpoint: "/places",
		QueryParams: url.Values{
			"addressList":  []string{"Seoul", "Busan"},
			"categoryList": []string{"cafe"},
			"take":         []string{"10"},
		},
		Principal: Fingerprint("token"),
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if result := key.String(); result != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, result, first)
		}
	}
}

func TestCacheKey_DoesNotMutateQuery(t *testing.T) {
	query := url.Values{"categoryList": []string{"cafe", "bar"}}
	_ = CacheKey{Endpoint: "/places", QueryParams: query}.String()

	if query["categoryList"][0] != "cafe" {
		t.Errorf("query values reordered: %v", query["categoryList"])
	}
}

func TestFingerprint(t *testing.T) {
	if Fingerprint("") != "" {
		t.Error("empty token should have empty fingerprint")
	}

	a := Fingerprint("token-a")
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}
	if a == Fingerprint("token-b") {
		t.Error("different tokens produced the same fingerprint")
	}
	if a != Fingerprint("token-a") {
		t.Error("fingerprint is not deterministic")
	}
}
