package sqlinline

const QInsertGenerationJob = `--sql 9d34d747-a0b4-4cdc-898c-248d1ab64cdf
insert into generation_jobs (
  id,
  user_id,
  upload_ref,
  prompt,
  prompt_hash,
  style,
  size,
  seed,
  lock_seed,
  state,
  progress,
  created_at
) values (
  $1::uuid,
  $2::text,
  nullif($3::text, ''),
  $4::text,
  $5::text,
  $6::text,
  $7::text,
  $8::bigint,
  $9::boolean,
  'pending',
  0,
  $10::timestamptz
);
`

const QSelectGenerationJobByID = `--sql 6173a956-803f-4e38-a144-94f146d9f3bf
select
  id::text,
  user_id,
  coalesce(upload_ref, ''),
  prompt,
  prompt_hash,
  style,
  size,
  seed,
  lock_seed,
  state,
  progress,
  coalesce(result_url, ''),
  coalesce(result_payload, ''),
  coalesce(model, ''),
  duration_ms,
  coalesce(error_message, ''),
  coalesce(error_code, ''),
  created_at,
  started_at,
  finished_at
from generation_jobs
where id = $1::uuid;
`

const QSelectSuccessJobByPromptHash = `--sql 9c1ead64-f946-4431-a78a-6988e895e6b9
select
  id::text,
  user_id,
  coalesce(upload_ref, ''),
  prompt,
  prompt_hash,
  style,
  size,
  seed,
  lock_seed,
  state,
  progress,
  coalesce(result_url, ''),
  coalesce(result_payload, ''),
  coalesce(model, ''),
  duration_ms,
  coalesce(error_message, ''),
  coalesce(error_code, ''),
  created_at,
  started_at,
  finished_at
from generation_jobs
where prompt_hash = $1::text
  and state = 'success'
limit 1;
`

const QCountJobsCreatedSince = `--sql 2125e2b6-a57e-4eaf-8945-7fb81c02c5ff
select count(*)
from generation_jobs
where user_id = $1::text
  and created_at >= $2::timestamptz;
`

const QCountActiveJobs = `--sql 1af08ee1-6b96-4ce2-a52c-e657e55e0c1a
select count(*)
from generation_jobs
where user_id = $1::text
  and state in ('pending', 'running');
`

const QListStalePendingJobs = `--sql 47fe239d-633a-4aa5-93d2-110ff6d6fd62
select id::text
from generation_jobs
where state = 'pending'
  and created_at < $1::timestamptz
order by created_at asc
limit $2::int;
`

const QClaimGenerationJob = `--sql f8bee128-595a-493a-99ae-a7d460e17331
update generation_jobs
set state = 'running',
    progress = 10,
    started_at = $2::timestamptz
where id = $1::uuid
  and state = 'pending';
`

const QUpdateGenerationJobProgress = `--sql 105b296f-89a6-4a05-bb5c-649af9e5bc5c
update generation_jobs
set progress = greatest(progress, $2::int)
where id = $1::uuid
  and state = 'running';
`

const QMarkGenerationJobSucceeded = `--sql 07f92e8e-dc19-40ac-8e46-d24ae62b3198
update generation_jobs
set state = 'success',
    progress = 100,
    result_url = $2::text,
    result_payload = nullif($3::text, ''),
    model = $4::text,
    seed = $5::bigint,
    duration_ms = $6::bigint,
    error_message = null,
    error_code = null,
    finished_at = $7::timestamptz
where id = $1::uuid
  and state = 'running';
`

const QMarkGenerationJobFailed = `--sql 49f652a2-e14c-4916-bf17-f8e394f687b5
update generation_jobs
set state = 'failed',
    error_message = $2::text,
    error_code = $3::text,
    finished_at = $4::timestamptz
where id = $1::uuid
  and state in ('pending', 'running');
`
