package testdev

import "testing"

func TestWritePass(t *testing.T) {
	d := New()
	d.Write(WordPass)
	r := d.Wait()
	if r.Outcome != Pass {
		t.Fatalf("Outcome = %v, want Pass", r.Outcome)
	}
}

func TestWriteFailWithCode(t *testing.T) {
	d := New()
	d.Write(WordFail | (7 << 16))
	r := d.Wait()
	if r.Outcome != Fail || r.Code != 7 {
		t.Fatalf("Result = %+v, want Fail code 7", r)
	}
}

func TestWriteReset(t *testing.T) {
	d := New()
	d.Write(WordReset)
	r := d.Wait()
	if r.Outcome != Reset {
		t.Fatalf("Outcome = %v, want Reset", r.Outcome)
	}
}

func TestSecondWriteIgnored(t *testing.T) {
	d := New()
	d.Write(WordPass)
	d.Write(WordFail | (1 << 16))
	r := d.Wait()
	if r.Outcome != Pass {
		t.Fatalf("Outcome = %v, want Pass (first write wins)", r.Outcome)
	}
}

func TestPendingNonBlocking(t *testing.T) {
	d := New()
	if _, ok := d.Pending(); ok {
		t.Fatal("expected no pending result before any write")
	}
	d.Write(WordPass)
	r, ok := d.Pending()
	if !ok || r.Outcome != Pass {
		t.Fatalf("Pending = %+v, %v", r, ok)
	}
	if got := d.Wait(); got.Outcome != Pass {
		t.Fatalf("Wait after Pending = %+v", got)
	}
}
