package validate

import (
	"errors"
	"testing"
)

func TestMIMEType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "allowed png", input: "image/png", want: "image/png"},
		{name: "normalizes case", input: "IMAGE/JPEG", want: "image/jpeg"},
		{name: "trims whitespace", input: "  image/webp  ", want: "image/webp"},
		{name: "empty", input: "", wantErr: ErrEmpty},
		{name: "disallowed", input: "image/gif", wantErr: ErrInvalidMIMEType},
		{name: "not an image", input: "application/pdf", wantErr: ErrInvalidMIMEType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MIMEType(tt.input, AllowedPortraitTypes)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("MIMEType() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("MIMEType() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("MIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileSize(t *testing.T) {
	constraints := FileConstraints{MinSizeBytes: 100, MaxSizeBytes: 1000}

	tests := []struct {
		name    string
		size    int64
		wantErr error
	}{
		{name: "within bounds", size: 500},
		{name: "at minimum", size: 100},
		{name: "at maximum", size: 1000},
		{name: "too small", size: 99, wantErr: ErrFileTooSmall},
		{name: "too large", size: 1001, wantErr: ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FileSize(tt.size, constraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("FileSize() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FileSize() unexpected error: %v", err)
			}
		})
	}
}

func TestFileSizeNonPositive(t *testing.T) {
	for _, size := range []int64{0, -1} {
		if err := FileSize(size, FileConstraints{}); err == nil {
			t.Errorf("FileSize(%d) should fail", size)
		}
	}
}

func TestPortraitFile(t *testing.T) {
	if _, err := PortraitFile("image/png", 1024); err != nil {
		t.Errorf("valid portrait rejected: %v", err)
	}
	if _, err := PortraitFile("video/mp4", 1024); !errors.Is(err, ErrInvalidMIMEType) {
		t.Errorf("error = %v, want ErrInvalidMIMEType", err)
	}
	if _, err := PortraitFile("image/png", 11*1024*1024); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("error = %v, want ErrFileTooLarge", err)
	}
}
