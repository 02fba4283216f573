package data

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CIFAR-10 binary distribution constants. Each record is a label byte
// followed by a 32x32 RGB image in channel-major order.
const (
	NumClasses    = 10
	ImageChannels = 3
	ImageHeight   = 32
	ImageWidth    = 32
	ImageSize     = ImageChannels * ImageHeight * ImageWidth

	recordSize = 1 + ImageSize
)

// Classes maps label indices to the CIFAR-10 class names.
var Classes = [NumClasses]string{
	"plane", "car", "bird", "cat", "deer", "dog", "frog", "horse", "ship", "truck",
}

var trainBatchFiles = []string{
	"data_batch_1.bin",
	"data_batch_2.bin",
	"data_batch_3.bin",
	"data_batch_4.bin",
	"data_batch_5.bin",
}

const testBatchFile = "test_batch.bin"

// Dataset holds normalized images and their labels. Images are stored as a
// single flat float32 slice, ImageSize values per sample, pixel values
// normalized to [-1, 1].
type Dataset struct {
	Images []float32
	Labels []int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Image returns the i-th image as a view into the backing slice.
func (d *Dataset) Image(i int) []float32 {
	return d.Images[i*ImageSize : (i+1)*ImageSize]
}

// LoadTrain reads the five CIFAR-10 training batches from dir.
func LoadTrain(dir string) (*Dataset, error) {
	ds := &Dataset{}
	for _, name := range trainBatchFiles {
		if err := loadBatchFile(filepath.Join(dir, name), ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// LoadTest reads the CIFAR-10 test batch from dir.
func LoadTest(dir string) (*Dataset, error) {
	ds := &Dataset{}
	if err := loadBatchFile(filepath.Join(dir, testBatchFile), ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func loadBatchFile(path string, ds *Dataset) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	record := make([]byte, recordSize)
	for {
		if _, err := io.ReadFull(f, record); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("truncated batch file %s: %w", path, err)
		}

		label := int(record[0])
		if label >= NumClasses {
			return fmt.Errorf("invalid label %d in %s", label, path)
		}
		ds.Labels = append(ds.Labels, label)

		for _, px := range record[1:] {
			// Normalize to [-1, 1]: (x/255 - 0.5) / 0.5
			ds.Images = append(ds.Images, float32(px)/127.5-1)
		}
	}

	if len(ds.Labels) == 0 {
		return fmt.Errorf("batch file %s contains no records", path)
	}
	return nil
}
