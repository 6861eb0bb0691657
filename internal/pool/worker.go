package pool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jward/lucien/internal/extract"
)

// maxTaskLine bounds a single protocol line. Tasks carry only a path and a
// digest, so this is generous.
const maxTaskLine = 1 << 20

// RunWorker is the worker-side protocol loop: read one JSON task per line,
// run the chain, write one JSON result per line. Returns after maxTasks
// tasks (the recycling bound) or at stdin EOF. The supervisor owns process
// lifetime; this function never kills anything.
func RunWorker(ctx context.Context, chain *extract.Chain, in io.Reader, out io.Writer, maxTasks int) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxTaskLine)
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)

	done := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var task Task
		if err := json.Unmarshal(scanner.Bytes(), &task); err != nil {
			return fmt.Errorf("decode task: %w", err)
		}

		res := chain.ExtractFile(ctx, task.Path, task.SHA256)
		result := TaskResult{
			FileID:     task.FileID,
			Status:     res.Status,
			Method:     res.Method,
			OutputPath: res.OutputPath,
			Error:      res.Error,
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush result: %w", err)
		}

		done++
		if maxTasks > 0 && done >= maxTasks {
			return nil
		}
	}
	return scanner.Err()
}
