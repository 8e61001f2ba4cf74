// Package requesttest provides testing utilities for the requests
// client.
//
// # Server
//
// Server is an in-process HTTP/1.1 server backed by net/http/httptest,
// useful for exercising a Session against real wire traffic without a
// network dependency:
//
//	func TestGet(t *testing.T) {
//	    srv := requesttest.NewServer()
//	    defer srv.Close()
//
//	    sess := requests.NewSession()
//	    resp, err := sess.Get(context.Background(), srv.URL()+"/get")
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    if resp.StatusCode != 200 {
//	        t.Fatalf("status = %d", resp.StatusCode)
//	    }
//	}
package requesttest
