package sqlinline

const QInsertJob = `--sql 40d6d24e-1f13-4d8f-8681-c553c00c92e8
insert into compress_jobs (id, state, progress_percent, phase, source_ref, filename, target_size_mb, created_at, updated_at)
values ($1, $2, $3, $4, $5, $6, $7, $8, $8);
`

const QSelectJob = `--sql b356431d-f88c-4f31-bdb6-4908458022dd
select id, state, progress_percent, phase, result_ref, error, source_ref, filename,
       target_size_mb, output_bytes, created_at, updated_at, coalesce(completed_at, 'epoch'::timestamptz)
from compress_jobs
where id = $1;
`

const QUpdateJobProgress = `--sql 550ee3ac-7b99-49c3-8ffd-e7f9c4f48d7d
update compress_jobs
set state = $2,
    progress_percent = greatest(progress_percent, $3),
    phase = $4,
    updated_at = now()
where id = $1
  and state not in ('completed', 'failed', 'cancelled');
`

// QFinishJob settles a job only if it is still active. When the job was
// already terminal the stored row is returned unchanged.
const QFinishJob = `--sql 2b962488-9bdc-4521-983a-981d53cf2317
with updated as (
    update compress_jobs
    set state = $2,
        result_ref = case when $3 = '' then result_ref else $3 end,
        error = $4,
        output_bytes = $5,
        progress_percent = case when $2 = 'completed' then 100 else progress_percent end,
        phase = case when $2 = 'completed' then 'done' else phase end,
        updated_at = now(),
        completed_at = now()
    where id = $1
      and state not in ('completed', 'failed', 'cancelled')
    returning id, state, progress_percent, phase, result_ref, error, source_ref, filename,
              target_size_mb, output_bytes, created_at, updated_at, completed_at
)
select * from updated
union all
select id, state, progress_percent, phase, result_ref, error, source_ref, filename,
       target_size_mb, output_bytes, created_at, updated_at, coalesce(completed_at, 'epoch'::timestamptz)
from compress_jobs
where id = $1
  and not exists (select 1 from updated);
`

const QListFinishedJobsBefore = `--sql cfd3dd90-a942-45b3-b0c7-32b43c59cb53
select id, state, progress_percent, phase, result_ref, error, source_ref, filename,
       target_size_mb, output_bytes, created_at, updated_at, completed_at
from compress_jobs
where completed_at is not null
  and completed_at < $1
order by completed_at asc;
`

const QDeleteJob = `--sql 0cc4fcf4-4933-466b-9c11-580ba507258d
delete from compress_jobs where id = $1;
`
